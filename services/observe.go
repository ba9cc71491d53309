package services

import (
	"time"

	"github.com/overstreetbilly/snapgram/metrics"
)

// observe пишет метрику операции; вызывается через defer с именованной ошибкой
func observe(operation string, start time.Time, err *error) {
	result := "ok"
	if err != nil && *err != nil {
		result = KindOf(*err).String()
	}
	metrics.RecordOperation(operation, result, time.Since(start))
}

package services

import (
	"context"
	"fmt"
	"log"

	"github.com/overstreetbilly/snapgram/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/overstreetbilly/snapgram/services")

// SagaStep - шаг SAGA: прямое действие и компенсация
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga - последовательность обратимых шагов.
// При ошибке выполненные шаги компенсируются в обратном порядке,
// после успешного выполнения запускаются действия AfterCommit.
type Saga struct {
	ID          string
	Steps       []*SagaStep
	afterCommit []*SagaStep
}

func NewSaga(id string) *Saga {
	return &Saga{ID: id}
}

// AddStep добавляет шаг; compensate может быть nil
func (saga *Saga) AddStep(name string, execute func(ctx context.Context) error, compensate func(ctx context.Context) error) *Saga {
	saga.Steps = append(saga.Steps, &SagaStep{
		Name:       name,
		Execute:    execute,
		Compensate: compensate,
	})
	return saga
}

// AfterCommit добавляет действие после успешного выполнения всех шагов.
// Его ошибка логируется и не откатывает SAGA.
func (saga *Saga) AfterCommit(name string, action func(ctx context.Context) error) *Saga {
	saga.afterCommit = append(saga.afterCommit, &SagaStep{Name: name, Execute: action})
	return saga
}

// Execute выполняет SAGA
func (saga *Saga) Execute(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "saga "+saga.ID, trace.WithAttributes(attribute.String("saga.id", saga.ID)))
	defer span.End()

	executedSteps := make([]*SagaStep, 0, len(saga.Steps))

	for _, step := range saga.Steps {
		if err := step.Execute(ctx); err != nil {
			log.Printf("ERROR: SAGA %s: step %s failed: %v", saga.ID, step.Name, err)
			span.RecordError(err, trace.WithAttributes(attribute.String("saga.step", step.Name)))
			span.SetStatus(codes.Error, "step "+step.Name+" failed")

			saga.compensate(ctx, span, executedSteps)
			return fmt.Errorf("saga %s failed at step %s: %w", saga.ID, step.Name, err)
		}

		span.AddEvent("step executed", trace.WithAttributes(attribute.String("saga.step", step.Name)))
		executedSteps = append(executedSteps, step)
	}

	for _, action := range saga.afterCommit {
		if err := action.Execute(ctx); err != nil {
			log.Printf("WARN: SAGA %s: after-commit %s failed: %v", saga.ID, action.Name, err)
			span.AddEvent("after-commit failed", trace.WithAttributes(
				attribute.String("saga.step", action.Name),
				attribute.String("error", err.Error()),
			))
		}
	}

	return nil
}

// compensate откатывает выполненные шаги в обратном порядке; ошибки компенсаций только логируются.
// Компенсации выполняются даже если контекст запроса уже отменен.
func (saga *Saga) compensate(ctx context.Context, span trace.Span, executedSteps []*SagaStep) {
	compensateCtx := context.WithoutCancel(ctx)

	for i := len(executedSteps) - 1; i >= 0; i-- {
		step := executedSteps[i]
		if step.Compensate == nil {
			continue
		}

		err := step.Compensate(compensateCtx)
		metrics.RecordCompensation(saga.ID, step.Name, err)
		if err != nil {
			log.Printf("ERROR: SAGA %s: compensation for %s failed: %v", saga.ID, step.Name, err)
			span.AddEvent("compensation failed", trace.WithAttributes(
				attribute.String("saga.step", step.Name),
				attribute.String("error", err.Error()),
			))
			continue
		}
		log.Printf("SAGA %s: compensation for %s completed", saga.ID, step.Name)
		span.AddEvent("step compensated", trace.WithAttributes(attribute.String("saga.step", step.Name)))
	}
}

package services

import (
	"context"
	"log"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"
)

const sweepBatchSize = 500

// SweepReport - итог очистки хранилища
type SweepReport struct {
	Scanned  int      `json:"scanned"`
	Orphaned []string `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	Failed   int      `json:"failed"`
}

// SweepOrphans удаляет файлы старше minAge, на которые не ссылается ни один пост.
// Удаление поста файл не трогает, поэтому такие файлы копятся.
func SweepOrphans(ctx context.Context, media *MediaService, minAge time.Duration, dryRun bool) (*SweepReport, error) {
	const op = "media.sweep"

	files, err := media.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Scanned: len(files), Orphaned: []string{}}
	cutoff := time.Now().UTC().Add(-minAge)

	candidates := make([]string, 0, len(files))
	for _, file := range files {
		if file.CreatedAt.Before(cutoff) {
			candidates = append(candidates, file.ID)
		}
	}

	for start := 0; start < len(candidates); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		var referenced []string
		err = db.GetReadOnlyDB(ctx).Model(&models.Post{}).Where("image_id IN ?", batch).Pluck("image_id", &referenced).Error
		if err != nil {
			return nil, storeError(op, err)
		}
		inUse := make(map[string]struct{}, len(referenced))
		for _, id := range referenced {
			inUse[id] = struct{}{}
		}

		for _, id := range batch {
			if _, ok := inUse[id]; ok {
				continue
			}
			report.Orphaned = append(report.Orphaned, id)
			if dryRun {
				continue
			}
			if err := media.Delete(ctx, id); err != nil && KindOf(err) != KindNotFound {
				log.Printf("WARN: failed to delete orphaned file %s: %v", id, err)
				report.Failed++
				continue
			}
			report.Deleted++
		}
	}
	return report, nil
}

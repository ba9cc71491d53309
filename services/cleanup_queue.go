package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	MEDIA_CLEANUP_QUEUE  = "media_cleanup_queue"
	CLEANUP_WORKER_COUNT = 2
	CLEANUP_MAX_ATTEMPTS = 3
)

// FileDiscarder удаляет файл, ставший ненужным после коммита
type FileDiscarder interface {
	Discard(ctx context.Context, fileID string) error
}

// FileDeleter - то, чем очередь удаляет файлы
type FileDeleter interface {
	Delete(ctx context.Context, fileID string) error
}

// CleanupTask - задача удаления осиротевшего файла
type CleanupTask struct {
	FileID     string    `json:"file_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CleanupQueue - очередь best-effort удаления файлов в Redis
type CleanupQueue struct {
	client *redis.Client
	media  FileDeleter
}

func NewCleanupQueue(client *redis.Client, media FileDeleter) *CleanupQueue {
	return &CleanupQueue{client: client, media: media}
}

// Discard ставит файл в очередь на удаление
func (q *CleanupQueue) Discard(ctx context.Context, fileID string) error {
	return q.enqueue(ctx, CleanupTask{FileID: fileID, EnqueuedAt: time.Now().UTC()})
}

func (q *CleanupQueue) enqueue(ctx context.Context, task CleanupTask) error {
	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err = q.client.RPush(ctx, MEDIA_CLEANUP_QUEUE, taskData).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	log.Printf("DEBUG: enqueued cleanup of file %s, attempt %d", task.FileID, task.Attempt)
	return nil
}

// StartWorkers запускает воркеры для обработки очереди
func (q *CleanupQueue) StartWorkers(ctx context.Context, count int) {
	if count <= 0 {
		count = CLEANUP_WORKER_COUNT
	}
	for i := 0; i < count; i++ {
		go q.worker(ctx, i)
	}
}

func (q *CleanupQueue) worker(ctx context.Context, workerID int) {
	log.Printf("Media cleanup worker %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Media cleanup worker %d stopping", workerID)
			return
		default:
			// блокирующий вызов с таймаутом
			result, err := q.client.BLPop(ctx, 5*time.Second, MEDIA_CLEANUP_QUEUE).Result()
			if err != nil {
				if err == redis.Nil || ctx.Err() != nil {
					continue
				}
				log.Printf("ERROR: cleanup worker %d failed to get task: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}
			if len(result) < 2 {
				continue
			}

			var task CleanupTask
			if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
				log.Printf("ERROR: cleanup worker %d failed to unmarshal task: %v", workerID, err)
				continue
			}
			q.processTask(ctx, &task)
		}
	}
}

// processTask удаляет файл; ошибки хранилища ведут к повтору, отсутствие файла - нет
func (q *CleanupQueue) processTask(ctx context.Context, task *CleanupTask) {
	err := q.media.Delete(ctx, task.FileID)
	if err == nil || KindOf(err) == KindNotFound {
		return
	}

	task.Attempt++
	if task.Attempt >= CLEANUP_MAX_ATTEMPTS {
		log.Printf("ERROR: giving up on cleanup of file %s after %d attempts: %v", task.FileID, task.Attempt, err)
		return
	}
	log.Printf("WARN: cleanup of file %s failed, retrying: %v", task.FileID, err)
	if err = q.enqueue(context.WithoutCancel(ctx), *task); err != nil {
		log.Printf("ERROR: failed to requeue cleanup of file %s: %v", task.FileID, err)
	}
}

// Len - длина очереди
func (q *CleanupQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, MEDIA_CLEANUP_QUEUE).Result()
}

// directDiscarder удаляет файл сразу, без очереди
type directDiscarder struct {
	media FileDeleter
}

func (d directDiscarder) Discard(ctx context.Context, fileID string) error {
	return d.media.Delete(ctx, fileID)
}

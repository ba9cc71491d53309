package services

import (
	"context"
	"fmt"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"
)

// SaveService - закладки. Повторное сохранение создает вторую запись.
type SaveService struct{}

func NewSaveService() *SaveService {
	return &SaveService{}
}

func (s *SaveService) Save(ctx context.Context, userID, postID string) (record *models.SavedPost, err error) {
	const op = "saves.save"
	defer observe(op, time.Now(), &err)

	if userID == "" || postID == "" {
		return nil, validationError(op, "user id and post id are required")
	}

	record = &models.SavedPost{UserID: userID, PostID: postID}
	if err = db.GetWriteDB(ctx).Create(record).Error; err != nil {
		return nil, storeError(op, err)
	}
	return record, nil
}

// Get нужен обработчику для проверки владельца перед удалением
func (s *SaveService) Get(ctx context.Context, recordID string) (record *models.SavedPost, err error) {
	const op = "saves.get"
	defer observe(op, time.Now(), &err)

	if recordID == "" {
		return nil, validationError(op, "save record id is required")
	}
	record = &models.SavedPost{}
	if err = db.GetReadOnlyDB(ctx).Where("id = ?", recordID).First(record).Error; err != nil {
		return nil, storeError(op, err)
	}
	return record, nil
}

func (s *SaveService) Unsave(ctx context.Context, recordID string) (err error) {
	const op = "saves.unsave"
	defer observe(op, time.Now(), &err)

	if recordID == "" {
		return validationError(op, "save record id is required")
	}
	result := db.GetWriteDB(ctx).Where("id = ?", recordID).Delete(&models.SavedPost{})
	if result.Error != nil {
		return storeError(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(op, KindNotFound, fmt.Errorf("save record %s not found", recordID))
	}
	return nil
}

// ListByUser возвращает закладки пользователя с постами, новые первыми.
// Закладки на удалённые посты пропускаются.
func (s *SaveService) ListByUser(ctx context.Context, userID string) (items []models.SavedItem, err error) {
	const op = "saves.list_by_user"
	defer observe(op, time.Now(), &err)

	if userID == "" {
		return nil, validationError(op, "user id is required")
	}

	var records []models.SavedPost
	err = db.GetReadOnlyDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, storeError(op, err)
	}

	items = []models.SavedItem{}
	if len(records) == 0 {
		return items, nil
	}

	postIDs := make([]string, 0, len(records))
	for _, record := range records {
		postIDs = append(postIDs, record.PostID)
	}
	var posts []models.Post
	if err = db.GetReadOnlyDB(ctx).Where("id IN ?", postIDs).Find(&posts).Error; err != nil {
		return nil, storeError(op, err)
	}
	byID := make(map[string]models.Post, len(posts))
	for _, post := range posts {
		byID[post.ID] = post
	}

	for _, record := range records {
		post, ok := byID[record.PostID]
		if !ok {
			continue
		}
		items = append(items, models.SavedItem{ID: record.ID, Post: post, CreatedAt: record.CreatedAt})
	}
	return items, nil
}

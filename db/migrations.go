package db

import (
	"fmt"
	"log"

	"github.com/overstreetbilly/snapgram/models"

	"gorm.io/gorm"
)

func Migrate(database *gorm.DB) error {
	err := database.AutoMigrate(
		&models.Account{},
		&models.AccountSession{},
		&models.User{},
		&models.Post{},
		&models.SavedPost{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return CreatePostIndexes(database)
}

// CreatePostIndexes создает индексы для ленты и поиска по подписи
func CreatePostIndexes(database *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_posts_updated_at_id ON posts (updated_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at_id ON posts (created_at DESC, id DESC)`,
	}
	for _, stmt := range statements {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if database.Dialector.Name() != "postgres" {
		return nil
	}
	// pg_trgm требует прав на CREATE EXTENSION, без него поиск работает через seq scan
	if err := database.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error; err != nil {
		log.Printf("WARN: pg_trgm is not available, caption search is unindexed: %v", err)
		return nil
	}
	err := database.Exec(`CREATE INDEX IF NOT EXISTS idx_posts_caption_trgm ON posts USING gin (LOWER(caption) gin_trgm_ops)`).Error
	if err != nil {
		return fmt.Errorf("failed to create caption index: %w", err)
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post - модель поста пользователя.
// ImageURL и ImageID всегда записываются вместе.
type Post struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	CreatorID string      `gorm:"size:36;index;not null" json:"creator"`
	Caption   string      `gorm:"type:text" json:"caption"`
	ImageURL  string      `gorm:"size:2048" json:"image_url"`
	ImageID   string      `gorm:"size:64" json:"image_id"`
	Location  string      `gorm:"size:255" json:"location"`
	Tags      StringArray `json:"tags"`
	Likes     StringArray `json:"likes"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time   `gorm:"index" json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = StringArray{}
	}
	if p.Likes == nil {
		p.Likes = StringArray{}
	}
	return nil
}

// Page - страница постов для курсорной пагинации
type Page struct {
	Posts      []Post `json:"posts"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// SavedPost - закладка: связь пользователя и поста
type SavedPost struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user"`
	PostID    string    `gorm:"size:36;index;not null" json:"post"`
	CreatedAt time.Time `json:"created_at"`
}

func (SavedPost) TableName() string {
	return "saves"
}

func (s *SavedPost) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SavedItem - закладка вместе с постом
type SavedItem struct {
	ID        string    `json:"id"`
	Post      Post      `json:"post"`
	CreatedAt time.Time `json:"created_at"`
}

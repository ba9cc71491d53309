package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account - учётная запись провайдера аутентификации
type Account struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"size:320;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AccountSession - активная сессия; токен клиента ссылается на неё через jti
type AccountSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID string    `gorm:"size:36;index" json:"account_id"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (AccountSession) TableName() string {
	return "account_sessions"
}

// User - запись пользователя приложения, привязанная к Account.
// Один User на Account предполагается, но не проверяется.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID string    `gorm:"size:36;index;not null" json:"account_id"`
	Name      string    `gorm:"size:255" json:"name"`
	Username  string    `gorm:"size:60;index" json:"username"`
	Email     string    `gorm:"size:320" json:"email"`
	ImageURL  string    `gorm:"size:2048" json:"image_url"`
	Bio       string    `gorm:"type:text" json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

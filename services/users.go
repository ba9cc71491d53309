package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"
)

// NewUser - данные для записи пользователя
type NewUser struct {
	AccountID string
	Name      string
	Email     string
	Username  string
	ImageURL  string
}

// NewAccount - данные регистрации
type NewAccount struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,min=2"`
	Username string `json:"username" binding:"required,min=2"`
}

// AvatarSource строит URL аватара по имени
type AvatarSource interface {
	AvatarURL(name string) (string, error)
}

type UserDirectory struct {
	accounts *AccountService
	avatars  AvatarSource
}

func NewUserDirectory(accounts *AccountService, avatars AvatarSource) *UserDirectory {
	return &UserDirectory{accounts: accounts, avatars: avatars}
}

// CreateUserRecord вставляет запись пользователя. Повтор account_id не проверяется.
func (d *UserDirectory) CreateUserRecord(ctx context.Context, user NewUser) (record *models.User, err error) {
	const op = "users.create"
	defer observe(op, time.Now(), &err)

	if user.AccountID == "" {
		return nil, validationError(op, "account id is required")
	}

	record = &models.User{
		AccountID: user.AccountID,
		Name:      user.Name,
		Email:     user.Email,
		Username:  user.Username,
		ImageURL:  user.ImageURL,
	}
	if err = db.GetWriteDB(ctx).Create(record).Error; err != nil {
		return nil, storeError(op, err)
	}
	return record, nil
}

// GetCurrentUser возвращает пользователя, привязанного к аккаунту сессии
func (d *UserDirectory) GetCurrentUser(ctx context.Context, token string) (user *models.User, err error) {
	const op = "users.get_current"
	defer observe(op, time.Now(), &err)

	account, err := d.accounts.GetCurrentAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	return d.userByAccount(ctx, op, account.ID)
}

// GetUserByAccount - то же для уже проверенной сессии, без повторного обращения к хранилищу сессий
func (d *UserDirectory) GetUserByAccount(ctx context.Context, accountID string) (user *models.User, err error) {
	const op = "users.get_by_account"
	defer observe(op, time.Now(), &err)

	if accountID == "" {
		return nil, newError(op, KindUnauthorized, errors.New("no authenticated account"))
	}
	return d.userByAccount(ctx, op, accountID)
}

func (d *UserDirectory) userByAccount(ctx context.Context, op, accountID string) (*models.User, error) {
	var users []models.User
	err := db.GetReadOnlyDB(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").
		Limit(2).
		Find(&users).Error
	if err != nil {
		return nil, storeError(op, err)
	}
	if len(users) == 0 {
		return nil, newError(op, KindNotFound, errors.New("no user record for account "+accountID))
	}
	if len(users) > 1 {
		log.Printf("WARN: account %s has more than one user record, using %s", accountID, users[0].ID)
	}
	return &users[0], nil
}

func (d *UserDirectory) GetUserByID(ctx context.Context, id string) (user *models.User, err error) {
	const op = "users.get"
	defer observe(op, time.Now(), &err)

	if id == "" {
		return nil, validationError(op, "user id is required")
	}
	user = &models.User{}
	if err = db.GetReadOnlyDB(ctx).Where("id = ?", id).First(user).Error; err != nil {
		return nil, storeError(op, err)
	}
	return user, nil
}

// RegisterUser создает аккаунт и запись пользователя.
// Если запись пользователя не создалась, аккаунт удаляется.
func (d *UserDirectory) RegisterUser(ctx context.Context, input NewAccount) (user *models.User, err error) {
	var (
		account  *models.Account
		imageURL string
	)

	saga := NewSaga("register_user")
	saga.AddStep("create_account",
		func(ctx context.Context) error {
			account, err = d.accounts.CreateAccount(ctx, input.Email, input.Password, input.Name)
			return err
		},
		func(ctx context.Context) error {
			return d.accounts.DeleteAccount(ctx, account.ID)
		},
	)
	saga.AddStep("avatar_url",
		func(ctx context.Context) error {
			imageURL, err = d.avatars.AvatarURL(input.Name)
			return err
		},
		nil,
	)
	saga.AddStep("create_user",
		func(ctx context.Context) error {
			user, err = d.CreateUserRecord(ctx, NewUser{
				AccountID: account.ID,
				Name:      strings.TrimSpace(input.Name),
				Email:     account.Email,
				Username:  strings.TrimSpace(input.Username),
				ImageURL:  imageURL,
			})
			return err
		},
		nil,
	)

	if err = saga.Execute(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

const MinPasswordLength = 8

var validate = validator.New()

// Session - выданная сессия и её токен
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountService - учётные записи и сессии. Текущей сессии нет:
// токен передаётся явно в каждый вызов.
type AccountService struct {
	sessions SessionStore
	tokens   *TokenSigner
	ttl      time.Duration
}

func NewAccountService(sessions SessionStore, tokens *TokenSigner, ttl time.Duration) *AccountService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AccountService{sessions: sessions, tokens: tokens, ttl: ttl}
}

// CreateAccount создает учётную запись
func (s *AccountService) CreateAccount(ctx context.Context, email, password, name string) (account *models.Account, err error) {
	const op = "accounts.create"
	defer observe(op, time.Now(), &err)

	email = strings.ToLower(strings.TrimSpace(email))
	if err = validate.Var(email, "required,email"); err != nil {
		return nil, validationError(op, "invalid email %q", email)
	}
	if len(password) < MinPasswordLength {
		return nil, validationError(op, "password must be at least %d characters", MinPasswordLength)
	}

	var alreadyExists int64
	err = db.GetWriteDB(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&alreadyExists).Error
	if err != nil {
		return nil, storeError(op, err)
	}
	if alreadyExists > 0 {
		return nil, newError(op, KindConflict, fmt.Errorf("account with email %s already exists", email))
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, storeError(op, err)
	}

	account = &models.Account{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
	}
	if err = db.GetWriteDB(ctx).Create(account).Error; err != nil {
		return nil, storeError(op, err)
	}
	return account, nil
}

// SignIn проверяет пароль и открывает новую сессию
func (s *AccountService) SignIn(ctx context.Context, email, password string) (session *Session, err error) {
	const op = "accounts.sign_in"
	defer observe(op, time.Now(), &err)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, validationError(op, "email and password are required")
	}

	var account models.Account
	err = db.GetReadOnlyDB(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, newError(op, KindUnauthorized, errors.New("invalid credentials"))
		}
		return nil, storeError(op, err)
	}
	if !checkPassword(account.PasswordHash, password) {
		return nil, newError(op, KindUnauthorized, errors.New("invalid credentials"))
	}

	now := time.Now().UTC()
	record := &models.AccountSession{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	token, err := s.tokens.Sign(record.ID, account.ID, now, record.ExpiresAt)
	if err != nil {
		return nil, storeError(op, err)
	}
	if err = s.sessions.Save(ctx, record); err != nil {
		return nil, storeError(op, err)
	}

	return &Session{
		ID:        record.ID,
		Token:     token,
		AccountID: account.ID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// GetCurrentAccount возвращает аккаунт, которому принадлежит токен
func (s *AccountService) GetCurrentAccount(ctx context.Context, token string) (account *models.Account, err error) {
	const op = "accounts.get_current"
	defer observe(op, time.Now(), &err)

	session, err := s.resolveSession(ctx, op, token)
	if err != nil {
		return nil, err
	}

	account = &models.Account{}
	err = db.GetWriteDB(ctx).Where("id = ?", session.AccountID).First(account).Error
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, newError(op, KindUnauthorized, errors.New("account no longer exists"))
		}
		return nil, storeError(op, err)
	}
	return account, nil
}

// SignOut отзывает сессию токена
func (s *AccountService) SignOut(ctx context.Context, token string) (err error) {
	const op = "accounts.sign_out"
	defer observe(op, time.Now(), &err)

	session, err := s.resolveSession(ctx, op, token)
	if err != nil {
		return err
	}
	return storeError(op, s.sessions.Delete(ctx, session.ID))
}

// DeleteAccount удаляет аккаунт вместе с сессиями; используется как компенсация регистрации
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) (err error) {
	const op = "accounts.delete"
	defer observe(op, time.Now(), &err)

	if accountID == "" {
		return validationError(op, "account id is required")
	}
	if err = s.sessions.DeleteByAccount(ctx, accountID); err != nil {
		log.Printf("WARN: failed to drop sessions of account %s: %v", accountID, err)
	}
	result := db.GetWriteDB(ctx).Where("id = ?", accountID).Delete(&models.Account{})
	if result.Error != nil {
		return storeError(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(op, KindNotFound, fmt.Errorf("account %s not found", accountID))
	}
	return nil
}

func (s *AccountService) resolveSession(ctx context.Context, op, token string) (*models.AccountSession, error) {
	if token == "" {
		return nil, newError(op, KindUnauthorized, errors.New("no session"))
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, newError(op, KindUnauthorized, err)
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, newError(op, KindUnauthorized, errors.New("session revoked or expired"))
		}
		return nil, storeError(op, err)
	}
	if session.AccountID != claims.Subject {
		return nil, newError(op, KindUnauthorized, errors.New("session does not match token"))
	}
	return session, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

func checkPassword(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expected) == 1
}

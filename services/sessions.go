package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"

	"github.com/go-redis/redis/v8"
)

const (
	SESSION_KEY_PREFIX         = "session:"
	ACCOUNT_SESSION_KEY_PREFIX = "account_sessions:"
)

// SessionStore хранит активные сессии
type SessionStore interface {
	Save(ctx context.Context, session *models.AccountSession) error
	// Get возвращает ошибку класса NotFound для отсутствующей или истекшей сессии
	Get(ctx context.Context, id string) (*models.AccountSession, error)
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// SQLSessionStore хранит сессии в таблице account_sessions
type SQLSessionStore struct{}

func NewSQLSessionStore() *SQLSessionStore {
	return &SQLSessionStore{}
}

func (s *SQLSessionStore) Save(ctx context.Context, session *models.AccountSession) error {
	return storeError("sessions.save", db.GetWriteDB(ctx).Create(session).Error)
}

func (s *SQLSessionStore) Get(ctx context.Context, id string) (*models.AccountSession, error) {
	var session models.AccountSession
	// читаем с мастера: сессия могла быть создана только что
	err := db.GetWriteDB(ctx).Where("id = ? AND expires_at > ?", id, time.Now().UTC()).First(&session).Error
	if err != nil {
		return nil, storeError("sessions.get", err)
	}
	return &session, nil
}

func (s *SQLSessionStore) Delete(ctx context.Context, id string) error {
	return storeError("sessions.delete", db.GetWriteDB(ctx).Where("id = ?", id).Delete(&models.AccountSession{}).Error)
}

func (s *SQLSessionStore) DeleteByAccount(ctx context.Context, accountID string) error {
	err := db.GetWriteDB(ctx).Where("account_id = ?", accountID).Delete(&models.AccountSession{}).Error
	return storeError("sessions.delete_by_account", err)
}

// RedisSessionStore хранит сессии в Redis с TTL до истечения
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, session *models.AccountSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return validationError("sessions.save", "session %s is already expired", session.ID)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	accountKey := ACCOUNT_SESSION_KEY_PREFIX + session.AccountID
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SESSION_KEY_PREFIX+session.ID, data, ttl)
	pipe.SAdd(ctx, accountKey, session.ID)
	pipe.Expire(ctx, accountKey, ttl)
	if _, err = pipe.Exec(ctx); err != nil {
		return storeError("sessions.save", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*models.AccountSession, error) {
	data, err := s.client.Get(ctx, SESSION_KEY_PREFIX+id).Bytes()
	if err == redis.Nil {
		return nil, newError("sessions.get", KindNotFound, fmt.Errorf("session %s not found", id))
	}
	if err != nil {
		return nil, storeError("sessions.get", err)
	}

	var session models.AccountSession
	if err = json.Unmarshal(data, &session); err != nil {
		return nil, storeError("sessions.get", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, SESSION_KEY_PREFIX+id)
	pipe.SRem(ctx, ACCOUNT_SESSION_KEY_PREFIX+session.AccountID, id)
	_, err = pipe.Exec(ctx)
	return storeError("sessions.delete", err)
}

func (s *RedisSessionStore) DeleteByAccount(ctx context.Context, accountID string) error {
	accountKey := ACCOUNT_SESSION_KEY_PREFIX + accountID
	ids, err := s.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return storeError("sessions.delete_by_account", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, SESSION_KEY_PREFIX+id)
	}
	keys = append(keys, accountKey)
	return storeError("sessions.delete_by_account", s.client.Del(ctx, keys...).Err())
}

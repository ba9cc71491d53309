package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	ctx := context.Background()

	email := gofakeit.Email()
	account, err := accounts.CreateAccount(ctx, "  "+strings.ToUpper(email)+" ", "password123", "Jane Doe")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, strings.ToLower(email), account.Email)
	assert.NotContains(t, account.PasswordHash, "password123")
	assert.True(t, checkPassword(account.PasswordHash, "password123"))
	assert.False(t, checkPassword(account.PasswordHash, "password124"))

	_, err = accounts.CreateAccount(ctx, email, "password123", "Jane Again")
	assert.True(t, errors.Is(err, ErrConflict), "duplicate email: %v", err)
}

func TestCreateAccountValidation(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	ctx := context.Background()

	_, err := accounts.CreateAccount(ctx, "not-an-email", "password123", "Jane")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = accounts.CreateAccount(ctx, gofakeit.Email(), "short", "Jane")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSignInAndCurrentAccount(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	ctx := context.Background()

	email := gofakeit.Email()
	account, err := accounts.CreateAccount(ctx, email, "password123", "Jane")
	require.NoError(t, err)

	session, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)
	assert.Equal(t, account.ID, session.AccountID)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	current, err := accounts.GetCurrentAccount(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, current.ID)

	_, err = accounts.SignIn(ctx, email, "wrong-password")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = accounts.SignIn(ctx, gofakeit.Email(), "password123")
	assert.True(t, errors.Is(err, ErrUnauthorized), "unknown email must look like a wrong password")
}

func TestSignOutRevokesToken(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	ctx := context.Background()

	email := gofakeit.Email()
	_, err := accounts.CreateAccount(ctx, email, "password123", "Jane")
	require.NoError(t, err)
	first, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)
	second, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)

	require.NoError(t, accounts.SignOut(ctx, first.Token))

	_, err = accounts.GetCurrentAccount(ctx, first.Token)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	// другие сессии того же аккаунта живы
	_, err = accounts.GetCurrentAccount(ctx, second.Token)
	assert.NoError(t, err)
}

func TestGetCurrentAccountRejectsBadTokens(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	ctx := context.Background()

	email := gofakeit.Email()
	account, err := accounts.CreateAccount(ctx, email, "password123", "Jane")
	require.NoError(t, err)
	session, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)

	foreign, err := NewTokenSigner("another-secret").Sign(session.ID, account.ID, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	expiredRecord := &models.AccountSession{
		ID:        gofakeit.UUID(),
		AccountID: account.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.ORM.Create(expiredRecord).Error)
	// подпись валидна, но сессия в хранилище уже истекла
	expired, err := NewTokenSigner(testSecret).Sign(expiredRecord.ID, account.ID, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":           "",
		"garbage":         "garbage",
		"foreign secret":  foreign,
		"expired session": expired,
	} {
		_, err := accounts.GetCurrentAccount(ctx, token)
		assert.True(t, errors.Is(err, ErrUnauthorized), "%s: %v", name, err)
	}
}

func TestDeleteAccount(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	ctx := context.Background()

	email := gofakeit.Email()
	account, err := accounts.CreateAccount(ctx, email, "password123", "Jane")
	require.NoError(t, err)
	session, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)

	require.NoError(t, accounts.DeleteAccount(ctx, account.ID))

	_, err = accounts.GetCurrentAccount(ctx, session.Token)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, errors.Is(accounts.DeleteAccount(ctx, account.ID), ErrNotFound))
	assert.Equal(t, KindValidation, KindOf(accounts.DeleteAccount(ctx, "")))
}

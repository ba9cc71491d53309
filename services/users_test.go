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

func TestGetCurrentUserWithoutSession(t *testing.T) {
	setupTestDB(t)
	directory := NewUserDirectory(newTestAccounts(), newTestMediaService(t))

	_, err := directory.GetCurrentUser(context.Background(), "")
	assert.True(t, errors.Is(err, ErrUnauthorized), "%v", err)
}

func TestGetCurrentUserReturnsMatchingRecord(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	directory := NewUserDirectory(accounts, newTestMediaService(t))
	ctx := context.Background()

	input := fakeAccount()
	registered, err := directory.RegisterUser(ctx, input)
	require.NoError(t, err)
	// чужой пользователь не должен попасть в ответ
	createTestUser(t)

	session, err := accounts.SignIn(ctx, input.Email, input.Password)
	require.NoError(t, err)

	current, err := directory.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, current.ID)
	assert.Equal(t, session.AccountID, current.AccountID)
}

func TestGetCurrentUserWithoutRecord(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	directory := NewUserDirectory(accounts, newTestMediaService(t))
	ctx := context.Background()

	email := gofakeit.Email()
	_, err := accounts.CreateAccount(ctx, email, "password123", "Jane")
	require.NoError(t, err)
	session, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)

	_, err = directory.GetCurrentUser(ctx, session.Token)
	assert.True(t, errors.Is(err, ErrNotFound), "%v", err)
}

func TestGetCurrentUserPicksOldestOfDuplicates(t *testing.T) {
	setupTestDB(t)
	accounts := newTestAccounts()
	directory := NewUserDirectory(accounts, newTestMediaService(t))
	ctx := context.Background()

	email := gofakeit.Email()
	account, err := accounts.CreateAccount(ctx, email, "password123", "Jane")
	require.NoError(t, err)

	older := &models.User{AccountID: account.ID, Name: "older", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &models.User{AccountID: account.ID, Name: "newer"}
	require.NoError(t, db.ORM.Create(newer).Error)
	require.NoError(t, db.ORM.Create(older).Error)

	session, err := accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)
	current, err := directory.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, older.ID, current.ID)
}

func TestGetUserByAccount(t *testing.T) {
	setupTestDB(t)
	directory := NewUserDirectory(newTestAccounts(), newTestMediaService(t))
	ctx := context.Background()

	registered, err := directory.RegisterUser(ctx, fakeAccount())
	require.NoError(t, err)

	found, err := directory.GetUserByAccount(ctx, registered.AccountID)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, found.ID)

	_, err = directory.GetUserByAccount(ctx, "")
	assert.True(t, errors.Is(err, ErrUnauthorized), "%v", err)

	_, err = directory.GetUserByAccount(ctx, gofakeit.UUID())
	assert.True(t, errors.Is(err, ErrNotFound), "%v", err)
}

func TestRegisterUser(t *testing.T) {
	setupTestDB(t)
	directory := NewUserDirectory(newTestAccounts(), newTestMediaService(t))

	input := fakeAccount()
	user, err := directory.RegisterUser(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(input.Email), user.Email)
	assert.Equal(t, input.Username, user.Username)
	assert.True(t, strings.HasPrefix(user.ImageURL, "http://localhost:8080/api/v1/avatars/initials?name="))

	fetched, err := directory.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetched.ID)
}

func TestRegisterUserCompensatesAccount(t *testing.T) {
	database := setupTestDB(t)
	directory := NewUserDirectory(newTestAccounts(), newTestMediaService(t))
	failOn(t, database, "create", "users")

	_, err := directory.RegisterUser(context.Background(), fakeAccount())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))

	var accounts int64
	require.NoError(t, db.ORM.Model(&models.Account{}).Count(&accounts).Error)
	assert.Zero(t, accounts, "account must be deleted when the user record cannot be written")
}

func TestGetUserByID(t *testing.T) {
	setupTestDB(t)
	directory := NewUserDirectory(newTestAccounts(), newTestMediaService(t))

	_, err := directory.GetUserByID(context.Background(), "")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = directory.GetUserByID(context.Background(), gofakeit.UUID())
	assert.True(t, errors.Is(err, ErrNotFound))
}

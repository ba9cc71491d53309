package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var errBoom = errors.New("boom")

const testSecret = "test-secret"

// setupTestDB поднимает отдельную in-memory sqlite базу на тест
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	database, err := db.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db.UseDB(database)
	t.Cleanup(func() {
		_ = db.CloseDB()
	})
	return database
}

// failOn заставляет операции gorm над таблицей завершаться ошибкой
func failOn(t *testing.T, database *gorm.DB, operation, table string) {
	t.Helper()

	name := "test:fail_" + operation + "_" + table
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(errBoom)
		}
	}

	var err error
	switch operation {
	case "create":
		err = database.Callback().Create().Before("gorm:create").Register(name, fail)
	case "update":
		err = database.Callback().Update().Before("gorm:update").Register(name, fail)
	case "delete":
		err = database.Callback().Delete().Before("gorm:delete").Register(name, fail)
	default:
		t.Fatalf("unknown operation %s", operation)
	}
	require.NoError(t, err)
}

// countQueries считает все обращения gorm к базе
func countQueries(t *testing.T, database *gorm.DB) *int {
	t.Helper()

	count := 0
	inc := func(*gorm.DB) { count++ }
	require.NoError(t, database.Callback().Query().Before("gorm:query").Register("test:count_query", inc))
	require.NoError(t, database.Callback().Create().Before("gorm:create").Register("test:count_create", inc))
	require.NoError(t, database.Callback().Update().Before("gorm:update").Register("test:count_update", inc))
	require.NoError(t, database.Callback().Delete().Before("gorm:delete").Register("test:count_delete", inc))
	require.NoError(t, database.Callback().Raw().Before("gorm:raw").Register("test:count_raw", inc))
	return &count
}

// pngBytes - минимальное содержимое, которое распознаётся как image/png
func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)
}

func pngUpload() *FileUpload {
	return &FileUpload{Name: "photo.png", Reader: bytes.NewReader(pngBytes())}
}

// fakeMedia - медиа-хранилище в памяти с внедрением ошибок
type fakeMedia struct {
	mu         sync.Mutex
	seq        int
	files      map[string][]byte
	deleted    []string
	uploadErr  error
	previewErr error
	deleteErr  error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{files: make(map[string][]byte)}
}

func (m *fakeMedia) Upload(ctx context.Context, upload FileUpload) (*models.File, error) {
	if m.uploadErr != nil {
		return nil, newError("media.upload", KindProvider, m.uploadErr)
	}
	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("file-%d", m.seq)
	m.files[id] = data
	return &models.File{ID: id, Name: upload.Name, Size: int64(len(data)), CreatedAt: time.Now().UTC()}, nil
}

func (m *fakeMedia) PreviewURL(fileID string) (string, error) {
	if m.previewErr != nil {
		return "", newError("media.preview_url", KindValidation, m.previewErr)
	}
	return "https://cdn.test/" + fileID + "/preview", nil
}

func (m *fakeMedia) Delete(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fileID)
	if m.deleteErr != nil {
		return newError("media.delete", KindProvider, m.deleteErr)
	}
	delete(m.files, fileID)
	return nil
}

func (m *fakeMedia) has(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[fileID]
	return ok
}

func (m *fakeMedia) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func newTestAccounts() *AccountService {
	return NewAccountService(NewSQLSessionStore(), NewTokenSigner(testSecret), time.Hour)
}

func newTestMediaService(t *testing.T) *MediaService {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), "media")
	require.NoError(t, err)
	return NewMediaService(store, MediaOptions{
		BucketID:    "media",
		Endpoint:    "http://localhost:8080/api/v1",
		ProjectID:   "snapgram",
		MaxFileSize: 1 << 20,
	})
}

func fakeAccount() NewAccount {
	return NewAccount{
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 12),
		Name:     gofakeit.Name(),
		Username: gofakeit.Username(),
	}
}

func createTestUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{
		AccountID: gofakeit.UUID(),
		Name:      gofakeit.Name(),
		Username:  gofakeit.Username(),
		Email:     gofakeit.Email(),
	}
	require.NoError(t, db.ORM.Create(user).Error)
	return user
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	t.Setenv("SNAPGRAM_JWT_SECRET", "from-env")
	t.Setenv("REDIS_ADDR", "cache.internal:6380")

	path := writeConfig(t, `
db:
  master:
    driver: sqlite
    dsn: test.db
auth:
  jwt_secret: from-file
  session_ttl: 2h
storage:
  endpoint: https://media.example.com/v1
`)
	require.NoError(t, LoadConfig(path))
	conf := AppConfig

	assert.Equal(t, "from-env", conf.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, conf.Auth.SessionTTL)
	assert.Equal(t, "sql", conf.Auth.SessionStore)
	assert.Equal(t, "disk", conf.Storage.Driver)
	assert.Equal(t, "media", conf.Storage.BucketID)
	assert.Equal(t, "https://media.example.com/v1", conf.Storage.Endpoint)
	assert.Equal(t, "cache.internal", conf.Redis.Host)
	assert.Equal(t, 6380, conf.Redis.Port)
}

func TestLoadConfigValidation(t *testing.T) {
	for _, name := range []string{"SNAPGRAM_JWT_SECRET", "MONGO_URI", "REDIS_ADDR", "REDIS_HOST"} {
		t.Setenv(name, "")
	}

	cases := map[string]string{
		"missing secret": `
db:
  master:
    driver: sqlite
    dsn: test.db
`,
		"unknown driver": `
db:
  master:
    driver: oracle
auth:
  jwt_secret: s
`,
		"gridfs without mongo": `
db:
  master:
    driver: sqlite
    dsn: test.db
auth:
  jwt_secret: s
storage:
  driver: gridfs
`,
		"redis sessions without redis": `
db:
  master:
    driver: sqlite
    dsn: test.db
auth:
  jwt_secret: s
  session_store: redis
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, LoadConfig(writeConfig(t, body)))
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")))
}

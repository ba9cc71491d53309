package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	// DSN, если задан, используется как есть (для sqlite - путь к файлу)
	DSN string `yaml:"dsn"`
}

type ConfigSchema struct {
	Databases struct {
		Master   DBConfig   `yaml:"master"`
		Replicas []DBConfig `yaml:"replicas"`
	} `yaml:"db"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
		Queue    string `yaml:"queue"`
	} `yaml:"rabbitmq"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Storage struct {
		Driver      string `yaml:"driver"` // disk | gridfs
		Root        string `yaml:"root"`
		BucketID    string `yaml:"bucket_id"`
		Endpoint    string `yaml:"endpoint"`
		ProjectID   string `yaml:"project_id"`
		MaxFileSize int64  `yaml:"max_file_size"`
	} `yaml:"storage"`
	Auth struct {
		JWTSecret    string        `yaml:"jwt_secret"`
		SessionTTL   time.Duration `yaml:"session_ttl"`
		SessionStore string        `yaml:"session_store"` // sql | redis
	} `yaml:"auth"`
	Feed struct {
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		CleanupWorkers int           `yaml:"cleanup_workers"`
	} `yaml:"feed"`
	Backend struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"backend"`
	Logs struct {
		Level string `yaml:"level"`
	} `yaml:"logs"`
}

var AppConfig *ConfigSchema

// Default возвращает конфигурацию для локального запуска без внешних сервисов
func Default() *ConfigSchema {
	conf := &ConfigSchema{}
	conf.Databases.Master = DBConfig{Driver: "sqlite", DSN: "snapgram.db"}
	conf.RabbitMQ.Exchange = "post_events"
	conf.RabbitMQ.Queue = "post_events_ws"
	conf.Mongo.Database = "snapgram"
	conf.Storage.Driver = "disk"
	conf.Storage.Root = "data/storage"
	conf.Storage.BucketID = "media"
	conf.Storage.Endpoint = "http://localhost:8080/api/v1"
	conf.Storage.ProjectID = "snapgram"
	conf.Storage.MaxFileSize = 50 << 20
	conf.Auth.SessionTTL = 30 * 24 * time.Hour
	conf.Auth.SessionStore = "sql"
	conf.Feed.CacheTTL = time.Minute
	conf.Feed.CleanupWorkers = 2
	conf.Backend.Port = 8080
	conf.Logs.Level = "info"
	return conf
}

func LoadConfig(filePath string) error {
	conf := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", filePath, err)
	}

	// .env необязателен, переменные окружения перекрывают файл
	_ = godotenv.Load()
	if err = applyEnv(conf); err != nil {
		return err
	}
	if err = conf.Validate(); err != nil {
		return err
	}

	AppConfig = conf
	return nil
}

func applyEnv(conf *ConfigSchema) error {
	if v := os.Getenv("SNAPGRAM_JWT_SECRET"); v != "" {
		conf.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		conf.Databases.Master.DSN = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		conf.RabbitMQ.URL = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		conf.Mongo.URI = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		conf.Storage.Endpoint = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_ADDR %q: %w", v, err)
		}
		conf.Redis.Host = host
		if conf.Redis.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid REDIS_ADDR port %q: %w", port, err)
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		conf.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_PORT %q: %w", v, err)
		}
		conf.Redis.Port = port
	}
	return nil
}

// Validate проверяет обязательные поля
func (c *ConfigSchema) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or SNAPGRAM_JWT_SECRET)")
	}
	switch c.Databases.Master.Driver {
	case "postgres":
		if c.Databases.Master.DSN == "" && c.Databases.Master.Host == "" {
			return fmt.Errorf("master database configuration is missing")
		}
	case "sqlite":
		if c.Databases.Master.DSN == "" {
			return fmt.Errorf("db.master.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported db driver %q", c.Databases.Master.Driver)
	}
	switch c.Storage.Driver {
	case "disk", "gridfs":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Auth.SessionStore {
	case "sql", "redis":
	default:
		return fmt.Errorf("unsupported session store %q", c.Auth.SessionStore)
	}
	if c.Storage.Driver == "gridfs" && c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required for gridfs storage")
	}
	if c.Auth.SessionStore == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required for redis sessions")
	}
	return nil
}

package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/overstreetbilly/snapgram/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var ORM *gorm.DB

func dsnFromConfig(dbConf config.DBConfig) string {
	if dbConf.DSN != "" {
		return dbConf.DSN
	}
	port := dbConf.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

func dialector(dbConf config.DBConfig) (gorm.Dialector, error) {
	switch dbConf.Driver {
	case "postgres", "":
		return postgres.Open(dsnFromConfig(dbConf)), nil
	case "sqlite":
		return sqlite.Open(dbConf.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", dbConf.Driver)
	}
}

func ConnectDB() (err error) {
	if ORM != nil {
		log.Println("ORM is already initialized")
		return nil
	}

	if config.AppConfig == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}
	conf := config.AppConfig

	master, err := dialector(conf.Databases.Master)
	if err != nil {
		return err
	}
	replicas := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
	for _, r := range conf.Databases.Replicas {
		replica, err := dialector(r)
		if err != nil {
			return err
		}
		replicas = append(replicas, replica)
	}

	database, err := Open(master, replicas...)
	if err != nil {
		return err
	}

	ORM = database
	return nil
}

// Open подключается к мастеру, регистрирует реплики и применяет миграции
func Open(master gorm.Dialector, replicas ...gorm.Dialector) (*gorm.DB, error) {
	database, err := gorm.Open(master, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if len(replicas) > 0 {
		err = database.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, err
		}
	}

	if err = Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}

// UseDB подменяет глобальное подключение (тесты, CLI)
func UseDB(database *gorm.DB) {
	ORM = database
}

func CloseDB() error {
	if ORM == nil {
		return nil
	}
	sqlDB, err := ORM.DB()
	ORM = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetReadOnlyDB возвращает подключение для чтения (реплики)
func GetReadOnlyDB(ctx context.Context) *gorm.DB {
	return ORM.WithContext(ctx).Clauses(dbresolver.Read)
}

// GetWriteDB возвращает подключение для записи (мастер)
func GetWriteDB(ctx context.Context) *gorm.DB {
	return ORM.WithContext(ctx).Clauses(dbresolver.Write)
}

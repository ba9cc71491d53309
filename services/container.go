package services

import (
	"context"
	"fmt"
	"log"

	"github.com/overstreetbilly/snapgram/config"

	"go.mongodb.org/mongo-driver/mongo"
)

// Container собирает сервисы по конфигурации
type Container struct {
	Accounts *AccountService
	Users    *UserDirectory
	Posts    *PostService
	Saves    *SaveService
	Media    *MediaService
	Hub      *WSConnManager
	Cleanup  *CleanupQueue
	Rabbit   *RabbitPublisher

	mongoClient *mongo.Client
}

// NewContainer ожидает загруженный конфиг и открытую БД.
// Redis подключается, если он нужен сессиям или задан redis.host.
func NewContainer(ctx context.Context, conf *config.ConfigSchema) (*Container, error) {
	c := &Container{Hub: GlobalWSConnManager}

	if conf.Redis.Host != "" && RedisClient == nil {
		if err := InitRedis(); err != nil {
			if conf.Auth.SessionStore == "redis" {
				return nil, err
			}
			log.Printf("WARN: redis is not available, running without feed cache and cleanup queue: %v", err)
		}
	}

	var store MediaStore
	switch conf.Storage.Driver {
	case "gridfs":
		client, err := ConnectMongo(ctx, conf.Mongo.URI)
		if err != nil {
			return nil, err
		}
		c.mongoClient = client
		gridStore, err := NewGridFSStore(client.Database(conf.Mongo.Database), conf.Storage.BucketID)
		if err != nil {
			c.Close()
			return nil, err
		}
		store = gridStore
	default:
		diskStore, err := NewDiskStore(conf.Storage.Root, conf.Storage.BucketID)
		if err != nil {
			return nil, err
		}
		store = diskStore
	}
	c.Media = NewMediaService(store, MediaOptions{
		BucketID:    conf.Storage.BucketID,
		Endpoint:    conf.Storage.Endpoint,
		ProjectID:   conf.Storage.ProjectID,
		MaxFileSize: conf.Storage.MaxFileSize,
	})

	var sessions SessionStore = NewSQLSessionStore()
	if conf.Auth.SessionStore == "redis" {
		sessions = NewRedisSessionStore(RedisClient)
	}
	c.Accounts = NewAccountService(sessions, NewTokenSigner(conf.Auth.JWTSecret), conf.Auth.SessionTTL)
	c.Users = NewUserDirectory(c.Accounts, c.Media)
	c.Saves = NewSaveService()

	c.Posts = NewPostService(c.Media)
	if RedisClient != nil {
		c.Cleanup = NewCleanupQueue(RedisClient, c.Media)
		c.Posts.WithCache(NewRedisFeedCache(RedisClient, conf.Feed.CacheTTL)).WithDiscarder(c.Cleanup)
	}

	if conf.RabbitMQ.URL != "" {
		rabbit, err := NewRabbitPublisher(conf.RabbitMQ.URL, conf.RabbitMQ.Exchange)
		if err != nil {
			log.Printf("WARN: %v, pushing post events directly", err)
		} else {
			c.Rabbit = rabbit
		}
	}
	if c.Rabbit != nil {
		c.Posts.WithEvents(c.Rabbit)
	} else {
		c.Posts.WithEvents(NewDirectPublisher(c.Hub))
	}

	return c, nil
}

// StartBackground запускает воркеры очереди очистки и консьюмер событий
func (c *Container) StartBackground(ctx context.Context, conf *config.ConfigSchema) error {
	if c.Cleanup != nil {
		c.Cleanup.StartWorkers(ctx, conf.Feed.CleanupWorkers)
	}
	if c.Rabbit != nil {
		if err := c.Rabbit.StartConsumer(ctx, conf.RabbitMQ.Queue, c.Hub); err != nil {
			return fmt.Errorf("failed to start post event consumer: %w", err)
		}
	}
	return nil
}

func (c *Container) Close() {
	if c.Rabbit != nil {
		if err := c.Rabbit.Close(); err != nil {
			log.Printf("WARN: failed to close RabbitMQ: %v", err)
		}
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("WARN: failed to disconnect MongoDB: %v", err)
		}
	}
	if err := CloseRedis(); err != nil {
		log.Printf("WARN: failed to close Redis: %v", err)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/overstreetbilly/snapgram/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore хранит файлы в бакете MongoDB GridFS. Идентификатор файла - строка uuid.
// Дедлайны чтения и записи хранятся в самом *gridfs.Bucket, поэтому загрузка
// и скачивание открывают свой бакет на вызов; общий бакет только для методов с ctx.
type GridFSStore struct {
	database *mongo.Database
	bucket   *gridfs.Bucket
	bucketID string
}

type gridfsMetadata struct {
	MimeType string `bson:"mime_type"`
}

type gridfsFileDoc struct {
	ID         string         `bson:"_id"`
	Length     int64          `bson:"length"`
	UploadDate time.Time      `bson:"uploadDate"`
	Name       string         `bson:"filename"`
	Metadata   gridfsMetadata `bson:"metadata"`
}

func NewGridFSStore(database *mongo.Database, bucketID string) (*GridFSStore, error) {
	s := &GridFSStore{database: database, bucketID: bucketID}
	bucket, err := s.openBucket()
	if err != nil {
		return nil, err
	}
	s.bucket = bucket
	return s, nil
}

func (s *GridFSStore) openBucket() (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.database, options.GridFSBucket().SetName(s.bucketID))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", s.bucketID, err)
	}
	return bucket, nil
}

// ConnectMongo подключается к MongoDB и проверяет соединение
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func (s *GridFSStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (*models.File, error) {
	id := uuid.NewString()
	bucket, err := s.openBucket()
	if err != nil {
		return nil, err
	}
	if err = applyDeadline(ctx, bucket.SetWriteDeadline); err != nil {
		return nil, err
	}

	uploadOpts := options.GridFSUpload().SetMetadata(gridfsMetadata{MimeType: contentType})
	counter := &countingReader{r: r}
	if err = bucket.UploadFromStreamWithID(id, name, counter, uploadOpts); err != nil {
		return nil, fmt.Errorf("failed to upload %s to gridfs: %w", name, err)
	}

	return &models.File{
		ID:        id,
		BucketID:  s.bucketID,
		Name:      name,
		MimeType:  contentType,
		Size:      counter.n,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *GridFSStore) Open(ctx context.Context, id string) (io.ReadCloser, *models.File, error) {
	bucket, err := s.openBucket()
	if err != nil {
		return nil, nil, err
	}
	if err = applyDeadline(ctx, bucket.SetReadDeadline); err != nil {
		return nil, nil, err
	}
	stream, err := bucket.OpenDownloadStream(id)
	if err != nil {
		return nil, nil, s.gridfsError("media.open", id, err)
	}

	file := &models.File{ID: id, BucketID: s.bucketID}
	if info := stream.GetFile(); info != nil {
		file.Name = info.Name
		file.Size = info.Length
		file.CreatedAt = info.UploadDate
		var meta gridfsMetadata
		if len(info.Metadata) > 0 && bson.Unmarshal(info.Metadata, &meta) == nil {
			file.MimeType = meta.MimeType
		}
	}
	return stream, file, nil
}

func (s *GridFSStore) Delete(ctx context.Context, id string) error {
	if err := s.bucket.DeleteContext(ctx, id); err != nil {
		return s.gridfsError("media.delete", id, err)
	}
	return nil
}

func (s *GridFSStore) List(ctx context.Context) ([]models.File, error) {
	cursor, err := s.bucket.FindContext(ctx, bson.D{}, options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list gridfs files: %w", err)
	}
	var docs []gridfsFileDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode gridfs files: %w", err)
	}

	files := make([]models.File, 0, len(docs))
	for _, doc := range docs {
		files = append(files, models.File{
			ID:        doc.ID,
			BucketID:  s.bucketID,
			Name:      doc.Name,
			MimeType:  doc.Metadata.MimeType,
			Size:      doc.Length,
			CreatedAt: doc.UploadDate,
		})
	}
	return files, nil
}

// applyDeadline переносит дедлайн контекста на бакет вызова:
// у загрузки и скачивания в GridFS API нет параметра ctx
func applyDeadline(ctx context.Context, set func(time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	return set(deadline)
}

func (s *GridFSStore) gridfsError(op, id string, err error) error {
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return newError(op, KindNotFound, fmt.Errorf("file %s not found", id))
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

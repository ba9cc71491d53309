package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/overstreetbilly/snapgram/models"

	"github.com/google/uuid"
)

const metaSuffix = ".json"

var fileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DiskStore хранит файлы в каталоге: <root>/<id> и метаданные в <root>/<id>.json
type DiskStore struct {
	root     string
	bucketID string
}

func NewDiskStore(root, bucketID string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &DiskStore{root: root, bucketID: bucketID}, nil
}

func (s *DiskStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (*models.File, error) {
	id := uuid.NewString()

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}

	file := &models.File{
		ID:        id,
		BucketID:  s.bucketID,
		Name:      name,
		MimeType:  contentType,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}
	meta, err := json.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err = os.WriteFile(s.path(id)+metaSuffix, meta, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	if err = os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(s.path(id) + metaSuffix)
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return file, nil
}

func (s *DiskStore) Open(ctx context.Context, id string) (io.ReadCloser, *models.File, error) {
	file, err := s.stat(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, nil, s.fsError("media.open", id, err)
	}
	return f, file, nil
}

func (s *DiskStore) Delete(ctx context.Context, id string) error {
	if !fileIDPattern.MatchString(id) {
		return newError("media.delete", KindNotFound, fmt.Errorf("file %s not found", id))
	}
	if err := os.Remove(s.path(id)); err != nil {
		return s.fsError("media.delete", id, err)
	}
	if err := os.Remove(s.path(id) + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove metadata of %s: %w", id, err)
	}
	return nil
}

func (s *DiskStore) List(ctx context.Context) ([]models.File, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage root: %w", err)
	}

	files := make([]models.File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		file, err := s.stat(strings.TrimSuffix(entry.Name(), metaSuffix))
		if err != nil {
			continue
		}
		files = append(files, *file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.Before(files[j].CreatedAt) })
	return files, nil
}

func (s *DiskStore) stat(id string) (*models.File, error) {
	if !fileIDPattern.MatchString(id) {
		return nil, newError("media.stat", KindNotFound, fmt.Errorf("file %s not found", id))
	}
	data, err := os.ReadFile(s.path(id) + metaSuffix)
	if err != nil {
		return nil, s.fsError("media.stat", id, err)
	}
	var file models.File
	if err = json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("corrupted metadata of %s: %w", id, err)
	}
	return &file, nil
}

func (s *DiskStore) path(id string) string {
	return filepath.Join(s.root, id)
}

func (s *DiskStore) fsError(op, id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return newError(op, KindNotFound, fmt.Errorf("file %s not found", id))
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

// ctxReader прерывает копирование при отмене контекста
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

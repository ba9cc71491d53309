package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/overstreetbilly/snapgram/models"

	"github.com/gabriel-vasile/mimetype"
)

const (
	PREVIEW_WIDTH   = 2000
	PREVIEW_HEIGHT  = 2000
	PREVIEW_GRAVITY = "top"
	PREVIEW_QUALITY = 100

	sniffLength = 3072
)

// ErrFileTooLarge возвращается хранилищу из ридера при превышении квоты
var ErrFileTooLarge = errors.New("file exceeds size quota")

// MediaStore - хранилище объектов
type MediaStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (*models.File, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *models.File, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.File, error)
}

// MediaBridge - то, что нужно репозиторию постов от медиа
type MediaBridge interface {
	Upload(ctx context.Context, upload FileUpload) (*models.File, error)
	PreviewURL(fileID string) (string, error)
	Delete(ctx context.Context, fileID string) error
}

// FileUpload - загружаемый файл
type FileUpload struct {
	Name   string
	Reader io.Reader
}

type MediaOptions struct {
	BucketID    string
	Endpoint    string
	ProjectID   string
	MaxFileSize int64
}

type MediaService struct {
	store MediaStore
	opts  MediaOptions
}

func NewMediaService(store MediaStore, opts MediaOptions) *MediaService {
	return &MediaService{store: store, opts: opts}
}

func (m *MediaService) BucketID() string {
	return m.opts.BucketID
}

// Upload принимает только изображения не больше квоты
func (m *MediaService) Upload(ctx context.Context, upload FileUpload) (file *models.File, err error) {
	const op = "media.upload"
	defer observe(op, time.Now(), &err)

	if upload.Reader == nil {
		return nil, validationError(op, "file is required")
	}
	name := strings.TrimSpace(upload.Name)
	if name == "" {
		name = "upload"
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(upload.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, newError(op, KindProvider, fmt.Errorf("failed to read upload: %w", err))
	}
	head = head[:n]
	if n == 0 {
		return nil, validationError(op, "file is empty")
	}

	mime := mimetype.Detect(head)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, validationError(op, "unsupported file type %s", mime.String())
	}

	var body io.Reader = io.MultiReader(bytes.NewReader(head), upload.Reader)
	if m.opts.MaxFileSize > 0 {
		body = &quotaReader{r: body, left: m.opts.MaxFileSize}
	}

	file, err = m.store.Upload(ctx, name, mime.String(), body)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, validationError(op, "file is larger than %d bytes", m.opts.MaxFileSize)
		}
		return nil, storeError(op, err)
	}
	return file, nil
}

// PreviewURL строит URL превью. Функция чистая: хранилище не опрашивается.
func (m *MediaService) PreviewURL(fileID string) (string, error) {
	const op = "media.preview_url"

	if fileID == "" {
		return "", validationError(op, "file id is required")
	}
	base, err := m.baseURL(op)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/preview?width=%d&height=%d&gravity=%s&quality=%d&project=%s",
		base,
		url.PathEscape(m.opts.BucketID),
		url.PathEscape(fileID),
		PREVIEW_WIDTH,
		PREVIEW_HEIGHT,
		PREVIEW_GRAVITY,
		PREVIEW_QUALITY,
		url.QueryEscape(m.opts.ProjectID),
	), nil
}

// AvatarURL - аватар с инициалами для нового пользователя
func (m *MediaService) AvatarURL(name string) (string, error) {
	const op = "media.avatar_url"

	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationError(op, "name is required")
	}
	base, err := m.baseURL(op)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/avatars/initials?name=%s&project=%s",
		base, url.QueryEscape(name), url.QueryEscape(m.opts.ProjectID)), nil
}

func (m *MediaService) Delete(ctx context.Context, fileID string) (err error) {
	const op = "media.delete"
	defer observe(op, time.Now(), &err)

	if fileID == "" {
		return validationError(op, "file id is required")
	}
	return storeError(op, m.store.Delete(ctx, fileID))
}

// Open отдаёт содержимое файла вызывающему, который обязан закрыть ридер
func (m *MediaService) Open(ctx context.Context, fileID string) (io.ReadCloser, *models.File, error) {
	const op = "media.open"

	if fileID == "" {
		return nil, nil, validationError(op, "file id is required")
	}
	rc, file, err := m.store.Open(ctx, fileID)
	if err != nil {
		return nil, nil, storeError(op, err)
	}
	return rc, file, nil
}

func (m *MediaService) List(ctx context.Context) ([]models.File, error) {
	files, err := m.store.List(ctx)
	if err != nil {
		return nil, storeError("media.list", err)
	}
	return files, nil
}

func (m *MediaService) baseURL(op string) (string, error) {
	endpoint, err := url.Parse(m.opts.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return "", validationError(op, "storage endpoint %q is not an absolute URL", m.opts.Endpoint)
	}
	return strings.TrimRight(endpoint.String(), "/"), nil
}

type quotaReader struct {
	r    io.Reader
	left int64
}

func (q *quotaReader) Read(p []byte) (int, error) {
	n, err := q.r.Read(p)
	q.left -= int64(n)
	if q.left < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

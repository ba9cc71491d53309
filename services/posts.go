package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/models"

	"gorm.io/gorm"
)

const (
	DEFAULT_RECENT_LIMIT = 20
	DEFAULT_PAGE_SIZE    = 10
	MAX_LIST_LIMIT       = 100
	SEARCH_LIMIT         = 100
)

// NewPost - данные для создания поста
type NewPost struct {
	CreatorID string
	Caption   string
	File      *FileUpload
	Location  string
	Tags      string // через запятую
}

// PostFields - изменяемые поля поста
type PostFields struct {
	Caption  string
	Location string
	Tags     string // через запятую
}

// PostService - репозиторий постов.
// Файл загружается до записи документа, старый файл удаляется только после коммита.
type PostService struct {
	media     MediaBridge
	cache     FeedCache
	events    EventPublisher
	discarder FileDiscarder
}

func NewPostService(media MediaBridge) *PostService {
	return &PostService{
		media:     media,
		discarder: directDiscarder{media: media},
	}
}

// WithCache включает кеш свежей ленты
func (ps *PostService) WithCache(cache FeedCache) *PostService {
	ps.cache = cache
	return ps
}

// WithEvents включает публикацию событий
func (ps *PostService) WithEvents(events EventPublisher) *PostService {
	ps.events = events
	return ps
}

// WithDiscarder заменяет немедленное удаление старых файлов, например на очередь
func (ps *PostService) WithDiscarder(discarder FileDiscarder) *PostService {
	ps.discarder = discarder
	return ps
}

// Create загружает файл и создает пост. Если пост не записан, файл удаляется.
func (ps *PostService) Create(ctx context.Context, input NewPost) (post *models.Post, err error) {
	const op = "posts.create"
	defer observe(op, time.Now(), &err)

	if input.CreatorID == "" {
		return nil, validationError(op, "creator id is required")
	}
	if input.File == nil || input.File.Reader == nil {
		return nil, validationError(op, "image file is required")
	}

	var (
		file     *models.File
		imageURL string
	)
	saga := NewSaga("create_post")
	saga.AddStep("upload_file",
		func(ctx context.Context) (err error) {
			file, err = ps.media.Upload(ctx, *input.File)
			return err
		},
		func(ctx context.Context) error {
			return ps.media.Delete(ctx, file.ID)
		},
	)
	saga.AddStep("preview_url",
		func(ctx context.Context) (err error) {
			imageURL, err = ps.media.PreviewURL(file.ID)
			return err
		},
		nil,
	)
	saga.AddStep("create_document",
		func(ctx context.Context) error {
			post = &models.Post{
				CreatorID: input.CreatorID,
				Caption:   input.Caption,
				ImageURL:  imageURL,
				ImageID:   file.ID,
				Location:  input.Location,
				Tags:      ParseTags(input.Tags),
			}
			return storeError(op, db.GetWriteDB(ctx).Create(post).Error)
		},
		nil,
	)
	ps.afterWrite(saga, PostCreated, func() *models.Post { return post })

	if err = saga.Execute(ctx); err != nil {
		return nil, err
	}
	return post, nil
}

// GetByID возвращает пост; пустой id отклоняется без обращения к БД
func (ps *PostService) GetByID(ctx context.Context, id string) (post *models.Post, err error) {
	const op = "posts.get"
	defer observe(op, time.Now(), &err)

	return ps.getByID(op, db.GetReadOnlyDB(ctx), id)
}

// GetForUpdate читает пост с мастера: реплика может отставать,
// а по прочитанному image_id делается изменение
func (ps *PostService) GetForUpdate(ctx context.Context, id string) (post *models.Post, err error) {
	const op = "posts.get_for_update"
	defer observe(op, time.Now(), &err)

	return ps.getByID(op, db.GetWriteDB(ctx), id)
}

func (ps *PostService) getByID(op string, conn *gorm.DB, id string) (*models.Post, error) {
	if id == "" {
		return nil, validationError(op, "post id is required")
	}
	post := &models.Post{}
	if err := conn.Where("id = ?", id).First(post).Error; err != nil {
		return nil, storeError(op, err)
	}
	return post, nil
}

// Update изменяет пост. existingImageID - image_id, который видел вызывающий.
// Без нового файла image_url и image_id не трогаются.
// С новым файлом: загрузка и превью до записи документа; запись проходит,
// только если в посте всё ещё existingImageID, иначе новый файл удаляется
// и возвращается Conflict. После коммита удаляется старый файл.
func (ps *PostService) Update(ctx context.Context, id string, fields PostFields, newFile *FileUpload, existingImageID string) (post *models.Post, err error) {
	const op = "posts.update"
	defer observe(op, time.Now(), &err)

	if id == "" {
		return nil, validationError(op, "post id is required")
	}
	if existingImageID == "" {
		return nil, validationError(op, "existing image id is required")
	}
	hasNewFile := newFile != nil && newFile.Reader != nil

	values := map[string]interface{}{
		"caption":    fields.Caption,
		"location":   fields.Location,
		"tags":       ParseTags(fields.Tags),
		"updated_at": time.Now().UTC(),
	}
	var uploaded *models.File

	saga := NewSaga("update_post")
	if hasNewFile {
		saga.AddStep("upload_file",
			func(ctx context.Context) (err error) {
				uploaded, err = ps.media.Upload(ctx, *newFile)
				return err
			},
			func(ctx context.Context) error {
				return ps.media.Delete(ctx, uploaded.ID)
			},
		)
		saga.AddStep("preview_url",
			func(ctx context.Context) error {
				imageURL, err := ps.media.PreviewURL(uploaded.ID)
				if err != nil {
					return err
				}
				values["image_url"] = imageURL
				values["image_id"] = uploaded.ID
				return nil
			},
			nil,
		)
	}
	saga.AddStep("update_document",
		func(ctx context.Context) error {
			query := db.GetWriteDB(ctx).Model(&models.Post{}).Where("id = ?", id)
			if hasNewFile {
				query = query.Where("image_id = ?", existingImageID)
			}
			result := query.Updates(values)
			if result.Error != nil {
				return storeError(op, result.Error)
			}
			if result.RowsAffected == 0 {
				return ps.missedUpdate(ctx, op, id, existingImageID)
			}
			post = &models.Post{}
			return storeError(op, db.GetWriteDB(ctx).Where("id = ?", id).First(post).Error)
		},
		nil,
	)
	if hasNewFile {
		saga.AfterCommit("discard_old_file", func(ctx context.Context) error {
			return ps.discarder.Discard(ctx, existingImageID)
		})
	}
	ps.afterWrite(saga, PostUpdated, func() *models.Post { return post })

	if err = saga.Execute(ctx); err != nil {
		return nil, err
	}
	return post, nil
}

// missedUpdate различает отсутствующий пост и пост, у которого уже сменили изображение
func (ps *PostService) missedUpdate(ctx context.Context, op, id, existingImageID string) error {
	var exists int64
	if err := db.GetWriteDB(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return storeError(op, err)
	}
	if exists == 0 {
		return newError(op, KindNotFound, fmt.Errorf("post %s not found", id))
	}
	return newError(op, KindConflict, fmt.Errorf("post %s no longer uses image %s", id, existingImageID))
}

// Delete удаляет только документ; файл остаётся в хранилище
func (ps *PostService) Delete(ctx context.Context, id, imageID string) (err error) {
	const op = "posts.delete"
	defer observe(op, time.Now(), &err)

	if id == "" || imageID == "" {
		return validationError(op, "post id and image id are required")
	}

	result := db.GetWriteDB(ctx).Where("id = ?", id).Delete(&models.Post{})
	if result.Error != nil {
		return storeError(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(op, KindNotFound, fmt.Errorf("post %s not found", id))
	}

	ps.notify(ctx, PostEvent{Type: PostDeleted, PostID: id, OccurredAt: time.Now().UTC()})
	return nil
}

// ListRecent - последние посты по времени создания
func (ps *PostService) ListRecent(ctx context.Context, limit int) (posts []models.Post, err error) {
	const op = "posts.list_recent"
	defer observe(op, time.Now(), &err)

	limit = clampLimit(limit, DEFAULT_RECENT_LIMIT)
	var (
		generation int64
		cacheable  bool
	)
	if ps.cache != nil {
		if cached, ok := ps.cache.GetRecent(ctx, limit); ok {
			return cached, nil
		}
		// поколение берётся до чтения БД, чтобы не закешировать ленту,
		// устаревшую из-за записи между чтением и SetRecent
		var genErr error
		if generation, genErr = ps.cache.Generation(ctx); genErr != nil {
			log.Printf("WARN: %v", genErr)
		} else {
			cacheable = true
		}
	}

	posts = []models.Post{}
	err = db.GetReadOnlyDB(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, storeError(op, err)
	}

	if cacheable {
		if cacheErr := ps.cache.SetRecent(ctx, limit, generation, posts); cacheErr != nil {
			log.Printf("WARN: %v", cacheErr)
		}
	}
	return posts, nil
}

// ListPage - страница по времени изменения; курсор - id последнего поста предыдущей страницы
func (ps *PostService) ListPage(ctx context.Context, cursor string, pageSize int) (page *models.Page, err error) {
	const op = "posts.list_page"
	defer observe(op, time.Now(), &err)

	pageSize = clampLimit(pageSize, DEFAULT_PAGE_SIZE)
	query := db.GetReadOnlyDB(ctx).Model(&models.Post{})

	if cursor != "" {
		var anchor models.Post
		err = db.GetReadOnlyDB(ctx).Select("id", "updated_at").Where("id = ?", cursor).First(&anchor).Error
		if err != nil {
			return nil, storeError(op, err)
		}
		query = query.Where("updated_at < ? OR (updated_at = ? AND id < ?)", anchor.UpdatedAt, anchor.UpdatedAt, anchor.ID)
	}

	posts := []models.Post{}
	err = query.Order("updated_at DESC, id DESC").Limit(pageSize + 1).Find(&posts).Error
	if err != nil {
		return nil, storeError(op, err)
	}

	page = &models.Page{Posts: posts}
	if len(posts) > pageSize {
		page.Posts = posts[:pageSize]
		page.HasMore = true
		page.NextCursor = page.Posts[pageSize-1].ID
	}
	return page, nil
}

// Search ищет подстроку в подписи без учёта регистра
func (ps *PostService) Search(ctx context.Context, term string) (posts []models.Post, err error) {
	const op = "posts.search"
	defer observe(op, time.Now(), &err)

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, validationError(op, "search term is required")
	}

	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	posts = []models.Post{}
	err = db.GetReadOnlyDB(ctx).
		Where(`LOWER(caption) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC, id DESC").
		Limit(SEARCH_LIMIT).
		Find(&posts).Error
	if err != nil {
		return nil, storeError(op, err)
	}
	return posts, nil
}

// SetLikes заменяет набор лайков целиком (last writer wins)
func (ps *PostService) SetLikes(ctx context.Context, id string, likerIDs []string) (post *models.Post, err error) {
	const op = "posts.set_likes"
	defer observe(op, time.Now(), &err)

	if id == "" {
		return nil, validationError(op, "post id is required")
	}

	likes := models.StringArray{}
	for _, liker := range likerIDs {
		if liker != "" && !likes.Contains(liker) {
			likes = append(likes, liker)
		}
	}

	err = db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Post{}).Where("id = ?", id).Update("likes", likes)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return newError(op, KindNotFound, fmt.Errorf("post %s not found", id))
		}
		post = &models.Post{}
		return tx.Where("id = ?", id).First(post).Error
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	ps.notify(ctx, newPostEvent(PostLiked, post))
	return post, nil
}

// afterWrite регистрирует инвалидацию кеша и событие после коммита
func (ps *PostService) afterWrite(saga *Saga, eventType string, post func() *models.Post) {
	saga.AfterCommit("invalidate_feed", func(ctx context.Context) error {
		if ps.cache == nil {
			return nil
		}
		return ps.cache.Invalidate(ctx)
	})
	saga.AfterCommit("publish_event", func(ctx context.Context) error {
		if ps.events == nil {
			return nil
		}
		return ps.events.Publish(ctx, newPostEvent(eventType, post()))
	})
}

// notify - то же для операций без SAGA
func (ps *PostService) notify(ctx context.Context, event PostEvent) {
	if ps.cache != nil {
		if err := ps.cache.Invalidate(ctx); err != nil {
			log.Printf("WARN: %v", err)
		}
	}
	if ps.events != nil {
		if err := ps.events.Publish(ctx, event); err != nil {
			log.Printf("WARN: failed to publish %s event for post %s: %v", event.Type, event.PostID, err)
		}
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MAX_LIST_LIMIT {
		return MAX_LIST_LIMIT
	}
	return limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

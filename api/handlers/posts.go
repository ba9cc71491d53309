package handlers

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/overstreetbilly/snapgram/models"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/gin-gonic/gin"
)

// PostForm - multipart форма создания и изменения поста
type PostForm struct {
	Caption  string `form:"caption" binding:"max=2200"`
	Location string `form:"location" binding:"max=2200"`
	Tags     string `form:"tags" binding:"max=2200"`
}

type LikesRequest struct {
	Likes []string `json:"likes" binding:"omitempty,dive,required"`
}

// CreatePost создает пост с изображением
func CreatePost(c *gin.Context) {
	var form PostForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	upload, closeFile, err := openUpload(header)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file"})
		return
	}
	defer closeFile()

	post, err := postService.Create(c.Request.Context(), services.NewPost{
		CreatorID: user.ID,
		Caption:   form.Caption,
		File:      upload,
		Location:  form.Location,
		Tags:      form.Tags,
	})
	if err != nil {
		respondError(c, err, "Failed to create post. Please try again.")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func GetPost(c *gin.Context) {
	post, err := postService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load post.")
		return
	}
	c.JSON(http.StatusOK, post)
}

// UpdatePost меняет пост; файл необязателен. Изменять пост может только автор.
func UpdatePost(c *gin.Context) {
	var form PostForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	post, ok := ownPost(c)
	if !ok {
		return
	}

	var upload *services.FileUpload
	header, err := c.FormFile("file")
	switch {
	case err == nil:
		var closeFile func()
		upload, closeFile, err = openUpload(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file"})
			return
		}
		defer closeFile()
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updated, err := postService.Update(c.Request.Context(), post.ID, services.PostFields{
		Caption:  form.Caption,
		Location: form.Location,
		Tags:     form.Tags,
	}, upload, post.ImageID)
	if err != nil {
		respondError(c, err, "Failed to update post. Please try again.")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func DeletePost(c *gin.Context) {
	post, ok := ownPost(c)
	if !ok {
		return
	}
	if err := postService.Delete(c.Request.Context(), post.ID, post.ImageID); err != nil {
		respondError(c, err, "Failed to delete post. Please try again.")
		return
	}
	c.Status(http.StatusNoContent)
}

func ListRecentPosts(c *gin.Context) {
	posts, err := postService.ListRecent(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err, "Failed to load posts.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// ListPosts - курсорная пагинация: cursor - id последнего поста предыдущей страницы
func ListPosts(c *gin.Context) {
	page, err := postService.ListPage(c.Request.Context(), c.Query("cursor"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err, "Failed to load posts.")
		return
	}
	c.JSON(http.StatusOK, page)
}

func SearchPosts(c *gin.Context) {
	posts, err := postService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, "Search failed. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// SetLikes заменяет набор лайков поста целиком
func SetLikes(c *gin.Context) {
	var req LikesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	post, err := postService.SetLikes(c.Request.Context(), c.Param("id"), req.Likes)
	if err != nil {
		respondError(c, err, "Failed to like post. Please try again.")
		return
	}
	c.JSON(http.StatusOK, post)
}

// ownPost загружает пост с мастера и проверяет, что текущий пользователь его автор
func ownPost(c *gin.Context) (*models.Post, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	post, err := postService.GetForUpdate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load post.")
		return nil, false
	}
	if post.CreatorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can change this post", "kind": services.KindForbidden.String()})
		return nil, false
	}
	return post, true
}

func openUpload(header *multipart.FileHeader) (*services.FileUpload, func(), error) {
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	closeFile := func() {
		if err := f.Close(); err != nil {
			log.Printf("WARN: failed to close upload %s: %v", header.Filename, err)
		}
	}
	return &services.FileUpload{Name: header.Filename, Reader: f}, closeFile, nil
}

func queryInt(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return value
}

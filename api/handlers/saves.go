package handlers

import (
	"net/http"

	"github.com/overstreetbilly/snapgram/services"

	"github.com/gin-gonic/gin"
)

type SaveRequest struct {
	PostID string `json:"post_id" binding:"required"`
}

func SavePost(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}
	record, err := saveService.Save(c.Request.Context(), user.ID, req.PostID)
	if err != nil {
		respondError(c, err, "Failed to save post. Please try again.")
		return
	}
	c.JSON(http.StatusCreated, record)
}

// DeleteSave удаляет закладку; удалить можно только свою
func DeleteSave(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	record, err := saveService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to remove saved post.")
		return
	}
	if record.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can remove this saved post", "kind": services.KindForbidden.String()})
		return
	}

	if err = saveService.Unsave(c.Request.Context(), record.ID); err != nil {
		respondError(c, err, "Failed to remove saved post.")
		return
	}
	c.Status(http.StatusNoContent)
}

func ListSaves(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := saveService.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "Failed to load saved posts.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"saves": items})
}

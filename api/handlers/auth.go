package handlers

import (
	"log"
	"net/http"

	"github.com/overstreetbilly/snapgram/models"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/gin-gonic/gin"
)

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type SignUpResponse struct {
	User    *models.User      `json:"user"`
	Session *services.Session `json:"session,omitempty"`
}

// SignUp создает аккаунт и пользователя, затем открывает сессию
func SignUp(c *gin.Context) {
	var req services.NewAccount
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := userDirectory.RegisterUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Sign up failed. Please try again.")
		return
	}

	response := SignUpResponse{User: user}
	session, err := accountService.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("WARN: user %s registered but sign in failed: %v", user.ID, err)
	} else {
		response.Session = session
	}
	c.JSON(http.StatusCreated, response)
}

func SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	session, err := accountService.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Sign in failed. Please try again.")
		return
	}
	c.JSON(http.StatusCreated, session)
}

func GetAccount(c *gin.Context) {
	account, ok := c.Get(AccountKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "kind": services.KindUnauthorized.String()})
		return
	}
	c.JSON(http.StatusOK, account)
}

func SignOut(c *gin.Context) {
	if err := accountService.SignOut(c.Request.Context(), sessionToken(c)); err != nil {
		respondError(c, err, "Sign out failed. Please try again.")
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"log"
	"net/http"

	"github.com/overstreetbilly/snapgram/models"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/gin-gonic/gin"
)

const (
	SessionTokenKey = "session_token"
	AccountIDKey    = "account_id"
	AccountKey      = "account"
)

// Services - зависимости обработчиков
type Services struct {
	Accounts *services.AccountService
	Users    *services.UserDirectory
	Posts    *services.PostService
	Saves    *services.SaveService
	Media    *services.MediaService
	Hub      *services.WSConnManager
}

var (
	accountService *services.AccountService
	userDirectory  *services.UserDirectory
	postService    *services.PostService
	saveService    *services.SaveService
	mediaService   *services.MediaService
	wsHub          *services.WSConnManager
)

// Init задаёт сервисы, которыми пользуются обработчики
func Init(deps Services) {
	accountService = deps.Accounts
	userDirectory = deps.Users
	postService = deps.Posts
	saveService = deps.Saves
	mediaService = deps.Media
	wsHub = deps.Hub
	if wsHub == nil {
		wsHub = services.GlobalWSConnManager
	}
}

// StatusFor переводит класс ошибки в HTTP статус
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// respondError отвечает общим сообщением; подробности остаются в логе
func respondError(c *gin.Context, err error, message string) {
	status := StatusFor(err)
	if status == http.StatusBadGateway {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	} else {
		log.Printf("DEBUG: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": message, "kind": services.KindOf(err).String()})
}

func sessionToken(c *gin.Context) string {
	return c.GetString(SessionTokenKey)
}

// currentUser возвращает пользователя сессии или отвечает ошибкой.
// Сессию уже проверил AuthMiddleware, берём id аккаунта из контекста gin.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, err := userDirectory.GetUserByAccount(c.Request.Context(), c.GetString(AccountIDKey))
	if err != nil {
		respondError(c, err, "Failed to resolve current user.")
		return nil, false
	}
	return user, true
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/overstreetbilly/snapgram/api/handlers"
	"github.com/overstreetbilly/snapgram/models"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/gin-gonic/gin"
)

// AccountResolver проверяет токен сессии
type AccountResolver interface {
	GetCurrentAccount(ctx context.Context, token string) (*models.Account, error)
}

// AuthMiddleware требует Authorization: Bearer <token> с действующей сессией.
// Токен и аккаунт кладутся в контекст gin, обработчики не проверяют сессию повторно.
func AuthMiddleware(accounts AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required: provide Authorization Bearer token",
				"kind":  services.KindUnauthorized.String(),
			})
			return
		}

		account, err := accounts.GetCurrentAccount(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(handlers.StatusFor(err), gin.H{
				"error": "Session is invalid or expired",
				"kind":  services.KindOf(err).String(),
			})
			return
		}

		c.Set(handlers.SessionTokenKey, token)
		c.Set(handlers.AccountIDKey, account.ID)
		c.Set(handlers.AccountKey, account)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	// браузерный WebSocket не умеет ставить заголовки
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}

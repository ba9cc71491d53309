package routes

import (
	"github.com/overstreetbilly/snapgram/api/handlers"

	"github.com/gin-gonic/gin"
)

func PublicApi(router *gin.Engine, auth gin.HandlerFunc) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	{
		// Аккаунт и сессии
		publicEndpoints.POST("account", handlers.SignUp)
		publicEndpoints.POST("account/sessions", handlers.SignIn)
		publicEndpoints.GET("account", auth, handlers.GetAccount)
		publicEndpoints.DELETE("account/sessions/current", auth, handlers.SignOut)

		// Пользователи
		publicEndpoints.GET("users/me", auth, handlers.GetCurrentUser)
		publicEndpoints.GET("users/me/saves", auth, handlers.ListSaves)
		publicEndpoints.GET("users/:id", handlers.GetUser)

		// Посты
		publicEndpoints.POST("posts", auth, handlers.CreatePost)
		publicEndpoints.GET("posts", handlers.ListPosts)
		publicEndpoints.GET("posts/recent", handlers.ListRecentPosts)
		publicEndpoints.GET("posts/search", handlers.SearchPosts)
		publicEndpoints.GET("posts/:id", handlers.GetPost)
		publicEndpoints.PATCH("posts/:id", auth, handlers.UpdatePost)
		publicEndpoints.DELETE("posts/:id", auth, handlers.DeletePost)
		publicEndpoints.PUT("posts/:id/likes", auth, handlers.SetLikes)

		// Закладки
		publicEndpoints.POST("saves", auth, handlers.SavePost)
		publicEndpoints.DELETE("saves/:id", auth, handlers.DeleteSave)

		// Медиа
		publicEndpoints.GET("storage/buckets/:bucket/files/:id/preview", handlers.ServeFile)
		publicEndpoints.GET("storage/buckets/:bucket/files/:id/view", handlers.ServeFile)
		publicEndpoints.GET("avatars/initials", handlers.AvatarInitials)

		// Живая лента
		publicEndpoints.GET("ws/feed", auth, handlers.WSFeedHandler)
	}
	return publicEndpoints
}

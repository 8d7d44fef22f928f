package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rcallen/chatd/internal/user"
)

// NewRouter builds the HTTP surface. Everything except root registration
// and backend status sits behind the identity middleware.
func NewRouter(h *Handler, users *user.Service, frontendURL string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if frontendURL != "" {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = []string{frontendURL}
		cc.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		cc.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Auth-User"}
		cc.AllowCredentials = true
		r.Use(cors.New(cc))
	}

	api := r.Group("/api")
	{
		api.POST("/register-root", h.RegisterRoot)
		api.GET("/status", h.BackendStatus)

		authed := api.Group("", Identity(users))
		{
			chats := authed.Group("/chats")
			{
				chats.GET("", h.ListChats)
				chats.POST("", h.CreateChat)
				chats.GET("/:chatId", h.GetChat)
				chats.POST("/:chatId/messages", h.SendMessage)
				chats.POST("/:chatId/stream", h.StreamMessage)
				chats.PUT("/:chatId", h.RenameChat)
				chats.POST("/:chatId/clear", h.ClearChat)
				chats.DELETE("/:chatId", h.DeleteChat)
			}

			authed.GET("/models", h.ListModels)
			authed.PUT("/users/:username/preferences", h.SetPreferences)

			admin := authed.Group("/users", RequireRoot())
			{
				admin.GET("", h.ListUsers)
				admin.POST("", h.AddUser)
				admin.DELETE("/:username", h.RemoveUser)
			}
		}
	}

	return r
}

package router

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/handler"
	"repairhub/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the REST chat routes. Every route requires
// authentication.
func SetupChatRouter(api *echo.Group, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := api.Group("/chat")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("", chatHandler.CreateChat)
	chatGroup.GET("", chatHandler.GetUserChats)
	chatGroup.GET("/unread", chatHandler.GetUnreadCount)

	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/:chatId/messages", chatHandler.GetChatMessages)
	chatGroup.PATCH("/:chatId/read", chatHandler.MarkAsRead)
	chatGroup.PUT("/:chatId/messages/:messageId", chatHandler.UpdateMessage)
	chatGroup.DELETE("/:chatId/messages/:messageId", chatHandler.DeleteMessage)
}

package router

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/handler"
	"repairhub/internal/adapter/api/middleware"
)

type Handlers struct {
	Chat      *handler.ChatHandler
	User      *handler.UserHandler
	WebSocket *handler.WebSocketHandler
	Health    *handler.HealthHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, rateLimit *middleware.RateLimitMiddleware) {
	api := e.Group("/api")
	api.Use(rateLimit.LimitByIP)

	SetupChatRouter(api, h.Chat, authMiddleware)
	SetupUserRouter(api, h.User, authMiddleware)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupHealthRouter(e, h.Health)
}

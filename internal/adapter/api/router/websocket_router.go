package router

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/handler"
)

// SetupWebSocketRouter mounts the socket endpoint. The handler authenticates
// the handshake itself so it can also accept a token query parameter.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}

package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/middleware"
	ws "repairhub/internal/infrastructure/websocket"
	"repairhub/pkg/errors"
	"repairhub/pkg/logger"
	"repairhub/pkg/response"
)

type WebSocketHandler struct {
	gateway        *ws.Gateway
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewWebSocketHandler(gateway *ws.Gateway, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		gateway:        gateway,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket authenticates the handshake and hands the upgraded
// connection to the gateway. The token comes from the Authorization header
// or, for browsers, the token query parameter.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token, ok := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		token = c.QueryParam("token")
	}
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication error", nil))
	}

	userID, err := h.authMiddleware.UserIDFromToken(c, token)
	if err != nil {
		logger.Warn("socket handshake rejected from %s: %v", c.RealIP(), err)
		return response.Error(c, errors.Unauthorized("Authentication error", err))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("socket upgrade failed for user %s: %v", userID, err)
		return nil
	}

	if err := h.gateway.Serve(conn, userID); err != nil {
		logger.Warn("socket rejected for user %s: %v", userID, err)
	}
	return nil
}

package handler

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/middleware"
	"repairhub/internal/usecase"
)

// ChatBroadcaster fans processed chat events out to live sockets. REST
// handlers use the same implementation as the socket gateway.
type ChatBroadcaster interface {
	BroadcastNewMessage(res *usecase.NewMessageResult)
	BroadcastMessagesRead(chatID, userID string)
}

// currentUserID returns the id set by the auth middleware.
func currentUserID(c echo.Context) string {
	uid, _ := c.Get(middleware.UserIDKey).(string)
	return uid
}

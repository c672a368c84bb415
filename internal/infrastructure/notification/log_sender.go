package notification

import (
	"context"

	"repairhub/internal/domain/entity"
	"repairhub/pkg/logger"
)

// LogSender stands in for the push transport when PUSH_ENABLED is false.
type LogSender struct{}

func (LogSender) Deliver(ctx context.Context, user *entity.User, title, body string, data map[string]string) bool {
	logger.Info("push (disabled): %s", logger.Fields("user", user.ID, "title", title, "body", body, "chat", data["chatId"]))
	return true
}

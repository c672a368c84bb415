// Package notification delivers out-of-band alerts for new chat messages to
// participants through a push transport.
package notification

import (
	"context"
	"sync"
	"time"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/pkg/logger"
)

const (
	previewLength = 40
	// TypeMessage tags the data payload of new-message notifications.
	TypeMessage = "message"
)

// Sender is the push transport. Deliver reports whether the notification was
// accepted; it must not panic on transport failures.
type Sender interface {
	Deliver(ctx context.Context, user *entity.User, title, body string, data map[string]string) bool
}

// Dispatcher fans new-message notifications out on background goroutines so
// callers never wait on the push transport.
type Dispatcher struct {
	users   repository.UserRepository
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(users repository.UserRepository, sender Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		users:   users,
		sender:  sender,
		timeout: timeout,
	}
}

// Preview shortens content to the first 40 characters followed by "...".
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

// NotifyNewMessage schedules a notification to receiverID and returns
// immediately. Failures are logged and otherwise ignored.
func (d *Dispatcher) NotifyNewMessage(receiverID, senderName, content, chatID, senderID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Detached from the request: the originating call may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		d.deliver(ctx, receiverID, senderName, content, chatID, senderID)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, receiverID, senderName, content, chatID, senderID string) bool {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification to %s panicked: %v", receiverID, r)
		}
	}()

	receiver, err := d.users.GetByID(ctx, receiverID)
	if err != nil {
		logger.Warn("notification skipped, receiver lookup failed: %s", logger.Fields("receiver", receiverID, "err", err))
		return false
	}
	if receiver.PushToken == "" {
		logger.Debug("notification skipped, no push token: %s", logger.Fields("receiver", receiverID))
		return false
	}

	data := map[string]string{
		"type":     TypeMessage,
		"chatId":   chatID,
		"senderId": senderID,
	}
	ok := d.sender.Deliver(ctx, receiver, senderName, Preview(content), data)
	if !ok {
		logger.Warn("notification delivery failed: %s", logger.Fields("receiver", receiverID, "chat", chatID))
	}
	return ok
}

// Wait blocks until every scheduled notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

package usecase

import "time"

// Notifier schedules an out-of-band alert for a new message. Implementations
// must return without waiting for delivery.
type Notifier interface {
	NotifyNewMessage(receiverID, senderName, content, chatID, senderID string)
}

// RateLimiter reports whether key may perform action now and, if not, how
// long it should wait.
type RateLimiter interface {
	Allow(key, action string) (bool, time.Duration)
}

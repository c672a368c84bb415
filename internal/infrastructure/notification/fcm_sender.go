package notification

import (
	"context"

	"firebase.google.com/go/v4/messaging"

	"repairhub/internal/domain/entity"
	"repairhub/pkg/logger"
)

// MessagingClient is the subset of *messaging.Client used to send pushes.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers notifications through Firebase Cloud Messaging using the
// user's device token.
type FCMSender struct {
	client MessagingClient
}

func NewFCMSender(client MessagingClient) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Deliver(ctx context.Context, user *entity.User, title, body string, data map[string]string) bool {
	if user.PushToken == "" {
		return false
	}

	msg := &messaging.Message{
		Token: user.PushToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		logger.Error("FCM send to user %s failed: %v", user.ID, err)
		return false
	}

	logger.Debug("FCM message %s sent to user %s", id, user.ID)
	return true
}

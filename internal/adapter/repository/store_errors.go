package repository

import (
	"time"

	"github.com/google/uuid"

	"repairhub/internal/domain/entity"
	"repairhub/pkg/errors"
)

// storeError passes domain errors through and marks everything else coming
// out of a driver as a transient store failure.
func storeError(message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}
	return errors.TransientStore(message, err)
}

// prepareNewChat fills the store-owned fields of a chat about to be inserted.
func prepareNewChat(chat *entity.Chat, now time.Time) {
	if chat.PairKey == "" {
		chat.PairKey = entity.PairKey(chat.Participants, chat.RepairListingID)
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if chat.LastMessage.IsZero() {
		chat.LastMessage = now
	}
	if chat.Status == "" {
		chat.Status = entity.ChatStatusActive
	}
	if chat.UnreadCounts == nil {
		chat.UnreadCounts = make(map[string]int)
	}
	if chat.Messages == nil {
		chat.Messages = []entity.Message{}
	}
}

// stampMessage assigns the store-owned fields of msg as the next entry of
// chat. Timestamps never go backwards relative to the previous message.
func stampMessage(chat *entity.Chat, msg *entity.Message, now time.Time) {
	if last := chat.LastMessageEntry(); last != nil && now.Before(last.Timestamp) {
		now = last.Timestamp
	}
	msg.ID = uuid.New().String()
	msg.Seq = chat.MessageCount + 1
	msg.Timestamp = now
	msg.Read = false
	msg.Edited = false
	msg.EditedAt = nil
}

package repository

import (
	"context"

	"repairhub/internal/domain/entity"
)

// ChatRepository is the chat store. Every mutating method is atomic per chat
// identity: implementations serialize concurrent writers to the same chat so
// no append or counter update is lost, and a method that fails writes nothing.
type ChatRepository interface {
	// Create stores chat unless one with the same PairKey exists, in which
	// case the existing chat is returned with created=false.
	Create(ctx context.Context, chat *entity.Chat) (stored *entity.Chat, created bool, err error)
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	// GetMeta returns the chat without its messages. MessageCount and the
	// counters are still filled in.
	GetMeta(ctx context.Context, id string) (*entity.Chat, error)
	// ListByUserID returns the user's chats, newest activity first. Message
	// bodies may be omitted.
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error)

	// AppendMessage assigns ID, Seq and Timestamp to msg, appends it and bumps
	// the unread counter of every participant other than msg.SenderID. The
	// returned chat always carries msg but may omit earlier messages.
	AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, error)
	// ResetUnread sets the unread counter of userID to zero.
	ResetUnread(ctx context.Context, chatID, userID string) (*entity.Chat, error)
	// EditMessage replaces the content of a message owned by senderID.
	EditMessage(ctx context.Context, chatID, messageID, senderID, content string) (*entity.Message, error)
	// DeleteMessage removes a message owned by senderID.
	DeleteMessage(ctx context.Context, chatID, messageID, senderID string) error
}

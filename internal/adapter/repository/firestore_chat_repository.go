package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/pkg/errors"
)

// maxTxAttempts bounds transaction retries on contended chat documents.
const maxTxAttempts = 20

// firestoreChatRepository keeps chat metadata in "chats/{id}" and the history
// in the "chats/{id}/messages" sub-collection keyed by message id. Every
// mutation runs inside a transaction on the chat document.
type firestoreChatRepository struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *firestoreChatRepository) chats() *firestore.CollectionRef {
	return r.client.Collection("chats")
}

func (r *firestoreChatRepository) messages(chatID string) *firestore.CollectionRef {
	return r.chats().Doc(chatID).Collection("messages")
}

func (r *firestoreChatRepository) Create(ctx context.Context, chat *entity.Chat) (*entity.Chat, bool, error) {
	prepareNewChat(chat, r.now())

	var stored *entity.Chat
	created := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored, created = nil, false

		query := r.chats().Where("pairKey", "==", chat.PairKey).Limit(1)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			var existing entity.Chat
			if err := docs[0].DataTo(&existing); err != nil {
				return errors.Internal("failed to parse chat data", err)
			}
			stored = &existing
			return nil
		}

		if err := tx.Create(r.chats().Doc(chat.ID), chat); err != nil {
			return err
		}
		stored, created = chat.Clone(), true
		return nil
	})
	if err != nil {
		return nil, false, storeError("failed to create chat", err)
	}

	if !created {
		if stored.Messages, err = r.loadMessages(ctx, stored.ID); err != nil {
			return nil, false, err
		}
	}
	return stored, created, nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	chat, err := r.GetMeta(ctx, id)
	if err != nil {
		return nil, err
	}

	if chat.Messages, err = r.loadMessages(ctx, id); err != nil {
		return nil, err
	}
	return chat, nil
}

// GetMeta reads only the chat document; the messages sub-collection is left
// untouched.
func (r *firestoreChatRepository) GetMeta(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.chats().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("chat", nil)
		}
		return nil, storeError("failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("failed to parse chat data", err)
	}
	return &chat, nil
}

func (r *firestoreChatRepository) loadMessages(ctx context.Context, chatID string) ([]entity.Message, error) {
	iter := r.messages(chatID).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	messages := []entity.Message{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeError("failed to iterate messages", err)
		}

		var msg entity.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, errors.Internal("failed to parse message data", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *firestoreChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	query := r.chats().Where("participants", "array-contains", userID).OrderBy("lastMessage", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, storeError("failed to count chats", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	chats := []*entity.Chat{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, storeError("failed to iterate chats", err)
		}

		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			return nil, 0, errors.Internal("failed to parse chat data", err)
		}
		chats = append(chats, &chat)
	}

	return chats, total, nil
}

// readChat loads the chat document inside tx.
func readChat(tx *firestore.Transaction, ref *firestore.DocumentRef) (*entity.Chat, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("chat", nil)
		}
		return nil, err
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("failed to parse chat data", err)
	}
	return &chat, nil
}

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, error) {
	ref := r.chats().Doc(chatID)
	var result *entity.Chat

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := readChat(tx, ref)
		if err != nil {
			return err
		}
		if !chat.HasParticipant(msg.SenderID) {
			return errors.Forbidden("not a participant", nil)
		}

		// Only the previous timestamp matters for ordering; it is mirrored in
		// lastMessage whenever the chat has messages.
		if chat.MessageCount > 0 {
			chat.Messages = []entity.Message{{Timestamp: chat.LastMessage}}
		}
		stampMessage(chat, msg, r.now())

		if err := tx.Create(r.messages(chatID).Doc(msg.ID), msg); err != nil {
			return err
		}

		updates := []firestore.Update{
			{Path: "messageCount", Value: firestore.Increment(1)},
			{Path: "lastMessage", Value: msg.Timestamp},
			{Path: "updatedAt", Value: msg.Timestamp},
		}
		if chat.UnreadCounts == nil {
			chat.UnreadCounts = make(map[string]int)
		}
		for _, p := range chat.OtherParticipants(msg.SenderID) {
			updates = append(updates, firestore.Update{
				FieldPath: firestore.FieldPath{"unreadCounts", p},
				Value:     firestore.Increment(1),
			})
			chat.UnreadCounts[p]++
		}
		if err := tx.Update(ref, updates); err != nil {
			return err
		}

		chat.MessageCount++
		chat.Messages = []entity.Message{*msg}
		chat.LastMessage = msg.Timestamp
		chat.UpdatedAt = msg.Timestamp
		result = chat
		return nil
	}, firestore.MaxAttempts(maxTxAttempts))
	if err != nil {
		return nil, storeError("failed to append message", err)
	}

	return result, nil
}

func (r *firestoreChatRepository) ResetUnread(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	ref := r.chats().Doc(chatID)
	var result *entity.Chat

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := readChat(tx, ref)
		if err != nil {
			return err
		}
		if !chat.HasParticipant(userID) {
			return errors.Forbidden("not a participant", nil)
		}

		if err := tx.Update(ref, []firestore.Update{
			{FieldPath: firestore.FieldPath{"unreadCounts", userID}, Value: 0},
		}); err != nil {
			return err
		}

		if chat.UnreadCounts == nil {
			chat.UnreadCounts = make(map[string]int)
		}
		chat.UnreadCounts[userID] = 0
		result = chat
		return nil
	})
	if err != nil {
		return nil, storeError("failed to reset unread count", err)
	}

	return result, nil
}

// readOwnedMessage loads messageID inside tx and checks it belongs to senderID.
func readOwnedMessage(tx *firestore.Transaction, ref *firestore.DocumentRef, senderID, verb string) (*entity.Message, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("message", nil)
		}
		return nil, err
	}

	var msg entity.Message
	if err := doc.DataTo(&msg); err != nil {
		return nil, errors.Internal("failed to parse message data", err)
	}
	if msg.SenderID != senderID {
		return nil, errors.Forbidden("not authorized to "+verb+" this message", nil)
	}
	return &msg, nil
}

func (r *firestoreChatRepository) EditMessage(ctx context.Context, chatID, messageID, senderID, content string) (*entity.Message, error) {
	chatRef := r.chats().Doc(chatID)
	msgRef := r.messages(chatID).Doc(messageID)
	var result *entity.Message

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := readChat(tx, chatRef); err != nil {
			return err
		}
		msg, err := readOwnedMessage(tx, msgRef, senderID, "edit")
		if err != nil {
			return err
		}

		editedAt := r.now()
		if err := tx.Update(msgRef, []firestore.Update{
			{Path: "content", Value: content},
			{Path: "edited", Value: true},
			{Path: "editedAt", Value: editedAt},
		}); err != nil {
			return err
		}
		if err := tx.Update(chatRef, []firestore.Update{{Path: "updatedAt", Value: editedAt}}); err != nil {
			return err
		}

		msg.Content = content
		msg.Edited = true
		msg.EditedAt = &editedAt
		result = msg
		return nil
	})
	if err != nil {
		return nil, storeError("failed to edit message", err)
	}

	return result, nil
}

func (r *firestoreChatRepository) DeleteMessage(ctx context.Context, chatID, messageID, senderID string) error {
	chatRef := r.chats().Doc(chatID)
	msgRef := r.messages(chatID).Doc(messageID)

	return storeError("failed to delete message", r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := readChat(tx, chatRef)
		if err != nil {
			return err
		}
		if _, err := readOwnedMessage(tx, msgRef, senderID, "delete"); err != nil {
			return err
		}

		// The two newest messages are enough to know what lastMessage becomes.
		newest, err := tx.Documents(r.messages(chatID).OrderBy("seq", firestore.Desc).Limit(2)).GetAll()
		if err != nil {
			return err
		}
		lastMessage := chat.LastMessage
		for _, doc := range newest {
			if doc.Ref.ID == messageID {
				continue
			}
			var remaining entity.Message
			if err := doc.DataTo(&remaining); err != nil {
				return errors.Internal("failed to parse message data", err)
			}
			lastMessage = remaining.Timestamp
			break
		}

		if err := tx.Delete(msgRef); err != nil {
			return err
		}
		return tx.Update(chatRef, []firestore.Update{
			{Path: "lastMessage", Value: lastMessage},
			{Path: "updatedAt", Value: r.now()},
		})
	}))
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/pkg/errors"
)

// chatSlot holds one chat behind its own mutex so writers to different chats
// never contend.
type chatSlot struct {
	mu   sync.Mutex
	chat *entity.Chat
}

type memoryChatRepository struct {
	mu    sync.RWMutex
	chats map[string]*chatSlot
	pairs map[string]string // pairKey -> chat id
	now   func() time.Time
}

func NewMemoryChatRepository() repository.ChatRepository {
	return &memoryChatRepository{
		chats: make(map[string]*chatSlot),
		pairs: make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryChatRepository) Create(ctx context.Context, chat *entity.Chat) (*entity.Chat, bool, error) {
	if chat.PairKey == "" {
		chat.PairKey = entity.PairKey(chat.Participants, chat.RepairListingID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.pairs[chat.PairKey]; ok {
		slot := r.chats[id]
		slot.mu.Lock()
		defer slot.mu.Unlock()
		return slot.chat.Clone(), false, nil
	}

	prepareNewChat(chat, r.now())

	stored := chat.Clone()
	r.chats[stored.ID] = &chatSlot{chat: stored}
	r.pairs[stored.PairKey] = stored.ID

	return stored.Clone(), true, nil
}

func (r *memoryChatRepository) slot(id string) (*chatSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("chat", nil)
	}
	return slot, nil
}

func (r *memoryChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	slot, err := r.slot(id)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.chat.Clone(), nil
}

func (r *memoryChatRepository) GetMeta(ctx context.Context, id string) (*entity.Chat, error) {
	slot, err := r.slot(id)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	meta := *slot.chat
	meta.Messages = nil
	return meta.Clone(), nil
}

func (r *memoryChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	r.mu.RLock()
	slots := make([]*chatSlot, 0, len(r.chats))
	for _, slot := range r.chats {
		slots = append(slots, slot)
	}
	r.mu.RUnlock()

	var chats []*entity.Chat
	for _, slot := range slots {
		slot.mu.Lock()
		if slot.chat.HasParticipant(userID) {
			chats = append(chats, slot.chat.Clone())
		}
		slot.mu.Unlock()
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessage.After(chats[j].LastMessage)
	})

	total := int64(len(chats))
	if offset >= len(chats) {
		return []*entity.Chat{}, total, nil
	}
	chats = chats[offset:]
	if limit > 0 && limit < len(chats) {
		chats = chats[:limit]
	}

	return chats, total, nil
}

func (r *memoryChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, error) {
	slot, err := r.slot(chatID)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	chat := slot.chat
	if !chat.HasParticipant(msg.SenderID) {
		return nil, errors.Forbidden("not a participant", nil)
	}

	stampMessage(chat, msg, r.now())

	chat.Messages = append(chat.Messages, *msg)
	chat.MessageCount++
	if chat.UnreadCounts == nil {
		chat.UnreadCounts = make(map[string]int)
	}
	for _, p := range chat.OtherParticipants(msg.SenderID) {
		chat.UnreadCounts[p]++
	}
	chat.RefreshLastMessage()
	chat.UpdatedAt = msg.Timestamp

	return chat.Clone(), nil
}

func (r *memoryChatRepository) ResetUnread(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	slot, err := r.slot(chatID)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	chat := slot.chat
	if !chat.HasParticipant(userID) {
		return nil, errors.Forbidden("not a participant", nil)
	}
	if chat.UnreadCounts == nil {
		chat.UnreadCounts = make(map[string]int)
	}
	chat.UnreadCounts[userID] = 0

	return chat.Clone(), nil
}

func (r *memoryChatRepository) EditMessage(ctx context.Context, chatID, messageID, senderID, content string) (*entity.Message, error) {
	slot, err := r.slot(chatID)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	for i := range slot.chat.Messages {
		m := &slot.chat.Messages[i]
		if m.ID != messageID {
			continue
		}
		if m.SenderID != senderID {
			return nil, errors.Forbidden("not authorized to edit this message", nil)
		}
		editedAt := r.now()
		m.Content = content
		m.Edited = true
		m.EditedAt = &editedAt
		slot.chat.UpdatedAt = editedAt

		edited := *m
		return &edited, nil
	}

	return nil, errors.NotFound("message", nil)
}

func (r *memoryChatRepository) DeleteMessage(ctx context.Context, chatID, messageID, senderID string) error {
	slot, err := r.slot(chatID)
	if err != nil {
		return err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	chat := slot.chat
	for i := range chat.Messages {
		if chat.Messages[i].ID != messageID {
			continue
		}
		if chat.Messages[i].SenderID != senderID {
			return errors.Forbidden("not authorized to delete this message", nil)
		}
		chat.Messages = append(chat.Messages[:i], chat.Messages[i+1:]...)
		chat.RefreshLastMessage()
		chat.UpdatedAt = r.now()
		return nil
	}

	return errors.NotFound("message", nil)
}

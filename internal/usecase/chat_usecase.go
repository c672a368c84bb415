package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/internal/infrastructure/ratelimit"
	"repairhub/pkg/errors"
	"repairhub/pkg/logger"
)

// MaxMessageLength is the longest message content accepted, in characters.
const MaxMessageLength = 4000

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	rateLimiter RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	rateLimiter RateLimiter,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}
}

type CreateChatInput struct {
	ParticipantID   string
	RepairListingID string
}

// NewMessageResult is what both entry points fan out after a successful send.
type NewMessageResult struct {
	Chat    *entity.Chat
	Message *entity.Message
}

// ReadResult identifies whose unread counter was cleared in which chat.
type ReadResult struct {
	Chat   *entity.Chat
	UserID string
}

type ParticipantProfile struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ChatView is a chat as shown to one participant.
type ChatView struct {
	*entity.Chat
	ParticipantProfiles []ParticipantProfile `json:"participantProfiles"`
	UnreadCount         int                  `json:"unreadCount"`
}

func (uc *ChatUseCase) allow(userID, action string) error {
	if uc.rateLimiter == nil {
		return nil
	}
	if ok, wait := uc.rateLimiter.Allow(userID, action); !ok {
		logger.Warn("rate limited: %s", logger.Fields("user", userID, "action", action, "wait", wait))
		return errors.TooManyRequests(fmt.Sprintf("Rate limit exceeded, retry in %d seconds", int(wait.Seconds())+1))
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.Validation("content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return errors.Validation(fmt.Sprintf("content must be at most %d characters", MaxMessageLength))
	}
	return nil
}

// participantChat loads chatID without its history and checks userID belongs
// to it.
func (uc *ChatUseCase) participantChat(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.Validation("chatId is required")
	}

	chat, err := uc.chatRepo.GetMeta(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, errors.Forbidden("not a participant", nil)
	}
	return chat, nil
}

// ProcessNewMessage validates and persists a message from senderID, then
// schedules notifications to the other participants. Broadcasting the result
// is left to the caller so it happens only after the append committed.
func (uc *ChatUseCase) ProcessNewMessage(ctx context.Context, chatID, senderID, content string) (*NewMessageResult, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.Validation("chatId is required")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if _, err := uc.participantChat(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	// Only participants spend send budget.
	if err := uc.allow(senderID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.NotFound("sender", err)
		}
		return nil, err
	}

	msg := &entity.Message{
		SenderID: senderID,
		Content:  content,
	}
	chat, err := uc.chatRepo.AppendMessage(ctx, chatID, msg)
	if err != nil {
		return nil, err
	}

	logger.Debug("message stored: %s", logger.Fields("chat", chatID, "sender", senderID, "seq", msg.Seq))

	if uc.notifier != nil {
		for _, receiverID := range chat.OtherParticipants(senderID) {
			uc.notifier.NotifyNewMessage(receiverID, sender.DisplayName(), content, chatID, senderID)
		}
	}

	return &NewMessageResult{Chat: chat, Message: msg}, nil
}

// ProcessMarkAsRead clears userID's unread counter in chatID. Repeating it is
// harmless.
func (uc *ChatUseCase) ProcessMarkAsRead(ctx context.Context, chatID, userID string) (*ReadResult, error) {
	if _, err := uc.participantChat(ctx, chatID, userID); err != nil {
		return nil, err
	}

	chat, err := uc.chatRepo.ResetUnread(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	return &ReadResult{Chat: chat, UserID: userID}, nil
}

// CanJoinChat reports whether userID may subscribe to chatID's room.
func (uc *ChatUseCase) CanJoinChat(ctx context.Context, chatID, userID string) error {
	_, err := uc.participantChat(ctx, chatID, userID)
	return err
}

// CreateChat returns the chat between userID and the participant about the
// listing, creating it when none exists yet.
func (uc *ChatUseCase) CreateChat(ctx context.Context, userID string, input CreateChatInput) (*entity.Chat, bool, error) {
	if input.ParticipantID == "" {
		return nil, false, errors.Validation("participantId is required")
	}
	if input.ParticipantID == userID {
		return nil, false, errors.BadRequest("cannot start a chat with yourself", nil)
	}

	if _, err := uc.userRepo.GetByID(ctx, input.ParticipantID); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, false, errors.NotFound("participant", err)
		}
		return nil, false, err
	}

	if err := uc.allow(userID, ratelimit.ActionCreateChat); err != nil {
		return nil, false, err
	}

	chat, created, err := uc.chatRepo.Create(ctx, &entity.Chat{
		Participants:    []string{userID, input.ParticipantID},
		RepairListingID: input.RepairListingID,
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		logger.Info("chat created: %s", logger.Fields("chat", chat.ID, "by", userID, "listing", input.RepairListingID))
	}
	return chat, created, nil
}

// GetUserChats lists userID's chats, most recent activity first.
func (uc *ChatUseCase) GetUserChats(ctx context.Context, userID string, limit, offset int) ([]*ChatView, int64, error) {
	chats, total, err := uc.chatRepo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	profiles := make(map[string]ParticipantProfile)
	views := make([]*ChatView, 0, len(chats))
	for _, chat := range chats {
		views = append(views, uc.view(ctx, chat, userID, profiles))
	}
	return views, total, nil
}

// GetChatMessages returns the chat with its history and marks it read for
// userID.
func (uc *ChatUseCase) GetChatMessages(ctx context.Context, chatID, userID string) (*ChatView, *ReadResult, error) {
	read, err := uc.ProcessMarkAsRead(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}

	return uc.view(ctx, chat, userID, make(map[string]ParticipantProfile)), read, nil
}

func (uc *ChatUseCase) view(ctx context.Context, chat *entity.Chat, userID string, cache map[string]ParticipantProfile) *ChatView {
	v := &ChatView{
		Chat:                chat,
		ParticipantProfiles: make([]ParticipantProfile, 0, len(chat.Participants)),
		UnreadCount:         chat.UnreadFor(userID),
	}

	for _, id := range chat.Participants {
		profile, ok := cache[id]
		if !ok {
			user, err := uc.userRepo.GetByID(ctx, id)
			if err != nil {
				logger.Debug("profile lookup failed: %s", logger.Fields("user", id, "err", err))
				profile = ParticipantProfile{ID: id}
			} else {
				profile = ParticipantProfile{ID: id, FullName: user.FullName, ProfileImage: user.ProfileImage}
			}
			cache[id] = profile
		}
		v.ParticipantProfiles = append(v.ParticipantProfiles, profile)
	}
	return v
}

// GetUnreadCount sums userID's unread counters over every chat.
func (uc *ChatUseCase) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	chats, _, err := uc.chatRepo.ListByUserID(ctx, userID, 0, 0)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, chat := range chats {
		total += chat.UnreadFor(userID)
	}
	return total, nil
}

// UpdateMessage replaces the content of one of userID's own messages.
func (uc *ChatUseCase) UpdateMessage(ctx context.Context, chatID, messageID, userID, content string) (*entity.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if _, err := uc.participantChat(ctx, chatID, userID); err != nil {
		return nil, err
	}

	return uc.chatRepo.EditMessage(ctx, chatID, messageID, userID, content)
}

// DeleteMessage removes one of userID's own messages.
func (uc *ChatUseCase) DeleteMessage(ctx context.Context, chatID, messageID, userID string) error {
	if _, err := uc.participantChat(ctx, chatID, userID); err != nil {
		return err
	}

	return uc.chatRepo.DeleteMessage(ctx, chatID, messageID, userID)
}

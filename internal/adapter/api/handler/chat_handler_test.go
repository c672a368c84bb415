package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairhub/internal/adapter/api"
	"repairhub/internal/adapter/api/middleware"
	"repairhub/internal/adapter/repository"
	"repairhub/internal/domain/entity"
	"repairhub/internal/usecase"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []*usecase.NewMessageResult
	reads    [][2]string
}

func (b *recordingBroadcaster) BroadcastNewMessage(res *usecase.NewMessageResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, res)
}

func (b *recordingBroadcaster) BroadcastMessagesRead(chatID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = append(b.reads, [2]string{chatID, userID})
}

type nopNotifier struct{}

func (nopNotifier) NotifyNewMessage(receiverID, senderName, content, chatID, senderID string) {}

func newChatHandler(t *testing.T) (*ChatHandler, *recordingBroadcaster, string) {
	t.Helper()
	ctx := context.Background()

	chats := repository.NewMemoryChatRepository()
	users := repository.NewMemoryUserRepository()
	require.NoError(t, users.Create(ctx, &entity.User{ID: "A", FullName: "Ayşe"}))
	require.NoError(t, users.Create(ctx, &entity.User{ID: "B", FullName: "Burak"}))
	chat, _, err := chats.Create(ctx, &entity.Chat{Participants: []string{"A", "B"}})
	require.NoError(t, err)

	b := &recordingBroadcaster{}
	return NewChatHandler(usecase.NewChatUseCase(chats, users, nopNotifier{}, nil), b), b, chat.ID
}

func newContext(method, path, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = api.NewValidator()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.UserIDKey, userID)
	return c, rec
}

func TestSendMessageBroadcastsOnSuccess(t *testing.T) {
	h, b, chatID := newChatHandler(t)

	c, rec := newContext(http.MethodPost, "/api/chat/messages", `{"chatId":"`+chatID+`","content":"hello"}`, "A")
	if assert.NoError(t, h.SendMessage(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotContains(t, body, "data")
		var msg entity.Message
		require.NoError(t, json.Unmarshal(body["message"], &msg))
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "A", msg.SenderID)
	}

	require.Len(t, b.messages, 1)
	assert.Equal(t, chatID, b.messages[0].Chat.ID)
	assert.Equal(t, "A", b.messages[0].Message.SenderID)
}

func TestSendMessageFailureDoesNotBroadcast(t *testing.T) {
	h, b, chatID := newChatHandler(t)

	c, rec := newContext(http.MethodPost, "/api/chat/messages", `{"chatId":"`+chatID+`","content":"hi"}`, "C")
	if assert.NoError(t, h.SendMessage(c)) {
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}

	c, rec = newContext(http.MethodPost, "/api/chat/messages", `{"chatId":"`+chatID+`"}`, "A")
	if assert.NoError(t, h.SendMessage(c)) {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	}

	assert.Empty(t, b.messages)
}

func TestMarkAsReadBroadcastsRead(t *testing.T) {
	h, b, chatID := newChatHandler(t)

	c, rec := newContext(http.MethodPatch, "/", "", "B")
	c.SetParamNames("chatId")
	c.SetParamValues(chatID)

	if assert.NoError(t, h.MarkAsRead(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		var chat entity.Chat
		require.NoError(t, json.Unmarshal(body["chat"], &chat))
		assert.Equal(t, chatID, chat.ID)
	}
	assert.Equal(t, [][2]string{{chatID, "B"}}, b.reads)
}

func TestGetChatMessagesBroadcastsRead(t *testing.T) {
	h, b, chatID := newChatHandler(t)

	c, rec := newContext(http.MethodGet, "/", "", "A")
	c.SetParamNames("chatId")
	c.SetParamValues(chatID)

	if assert.NoError(t, h.GetChatMessages(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"participantProfiles"`)
	}
	assert.Equal(t, [][2]string{{chatID, "A"}}, b.reads)
}

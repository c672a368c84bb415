package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairhub/internal/adapter/api"
	"repairhub/internal/adapter/api/handler"
	"repairhub/internal/adapter/api/middleware"
	"repairhub/internal/adapter/api/router"
	"repairhub/internal/adapter/repository"
	"repairhub/internal/domain/entity"
	"repairhub/internal/infrastructure/auth"
	"repairhub/internal/infrastructure/ratelimit"
	ws "repairhub/internal/infrastructure/websocket"
	"repairhub/internal/usecase"
)

const testSecret = "test-secret"

// envelope decodes every response shape. Message is a string on errors and
// plain acknowledgements, and the stored message object on a send.
type envelope struct {
	Success bool            `json:"success"`
	Message json.RawMessage `json:"message"`
	Chat    json.RawMessage `json:"chat"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e envelope) text(t *testing.T) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(e.Message, &s))
	return s
}

type nopNotifier struct{}

func (nopNotifier) NotifyNewMessage(receiverID, senderName, content, chatID, senderID string) {}

type server struct {
	url    string
	jwt    *auth.JWTManager
	tokens map[string]string
}

func newServer(t *testing.T, limits map[string]ratelimit.Limit) *server {
	t.Helper()
	ctx := context.Background()

	chatRepo := repository.NewMemoryChatRepository()
	userRepo := repository.NewMemoryUserRepository()
	for _, u := range []entity.User{
		{ID: "A", FullName: "Ayşe", UserType: entity.UserTypeVehicleOwner},
		{ID: "B", FullName: "Burak", UserType: entity.UserTypeMechanic},
		{ID: "C", FullName: "Cem", UserType: entity.UserTypeMechanic},
	} {
		u := u
		require.NoError(t, userRepo.Create(ctx, &u))
	}

	limiter := ratelimit.NewRateLimiter(limits)
	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, nopNotifier{}, limiter)
	userUseCase := usecase.NewUserUseCase(userRepo)
	gateway := ws.NewGateway(ws.NewManager(), chatUseCase)

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	e := echo.New()
	e.Validator = api.NewValidator()
	router.Setup(e, router.Handlers{
		Chat:      handler.NewChatHandler(chatUseCase, gateway),
		User:      handler.NewUserHandler(userUseCase),
		WebSocket: handler.NewWebSocketHandler(gateway, authMiddleware),
		Health:    handler.NewHealthHandler(gateway.Manager()),
	}, authMiddleware, middleware.NewRateLimitMiddleware(limiter))
	router.SetupDevRouter(e, "development", handler.NewDevHandler(jwtManager, userRepo))

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		gateway.Shutdown(context.Background())
		srv.Close()
	})

	s := &server{url: srv.URL, jwt: jwtManager, tokens: make(map[string]string)}
	for _, id := range []string{"A", "B", "C"} {
		token, _, err := jwtManager.GenerateToken(id)
		require.NoError(t, err)
		s.tokens[id] = token
	}
	return s
}

func (s *server) do(t *testing.T, user, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.url+path, &buf)
	require.NoError(t, err)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.tokens[user])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *server) dial(t *testing.T, user string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.url, "http") + "/ws?token=" + s.tokens[user]
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Equal(t, ws.EventConnected, readEvent(t, conn).Type)
	return conn
}

func readEvent(t *testing.T, conn *gorillaws.Conn) ws.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var e ws.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func emit(t *testing.T, conn *gorillaws.Conn, eventType string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ws.Event{Type: eventType, Data: raw}))
}

func defaultLimits() map[string]ratelimit.Limit {
	return ratelimit.DefaultLimits(600, 100)
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t, defaultLimits())

	resp, err := http.Get(s.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChatRoutesRequireAuthentication(t *testing.T) {
	s := newServer(t, defaultLimits())

	status, env := s.do(t, "", http.MethodGet, "/api/chat", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	s.tokens["X"] = "not-a-token"
	status, _ = s.do(t, "X", http.MethodGet, "/api/chat", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSocketHandshakeRejectsBadToken(t *testing.T) {
	s := newServer(t, defaultLimits())
	url := "ws" + strings.TrimPrefix(s.url, "http") + "/ws?token=bogus"

	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "Authentication error", env.text(t))
}

func TestCreateChatIsIdempotent(t *testing.T) {
	s := newServer(t, defaultLimits())
	body := map[string]string{"participantId": "B", "repairListingId": "L1"}

	status, env := s.do(t, "A", http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusCreated, status)
	var first entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &first))

	status, env = s.do(t, "B", http.MethodPost, "/api/chat", map[string]string{"participantId": "A", "repairListingId": "L1"})
	require.Equal(t, http.StatusOK, status)
	var second entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, first.ID, second.ID)

	status, env = s.do(t, "A", http.MethodPost, "/api/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func createChat(t *testing.T, s *server) string {
	t.Helper()
	status, env := s.do(t, "A", http.MethodPost, "/api/chat", map[string]string{"participantId": "B"})
	require.Equal(t, http.StatusCreated, status)
	var chat entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	return chat.ID
}

func unreadCount(t *testing.T, s *server, user string) int {
	t.Helper()
	status, env := s.do(t, user, http.MethodGet, "/api/chat/unread", nil)
	require.Equal(t, http.StatusOK, status)
	var data struct {
		UnreadCount int `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.UnreadCount
}

// A message sent over REST reaches the receiver's socket, and a read over
// REST is announced in the chat room.
func TestRESTSendReachesSocket(t *testing.T) {
	s := newServer(t, defaultLimits())
	chatID := createChat(t, s)
	b := s.dial(t, "B")

	status, env := s.do(t, "A", http.MethodPost, "/api/chat/messages", map[string]string{"chatId": chatID, "content": "brakes squeak"})
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)
	assert.Empty(t, env.Data)
	var sent entity.Message
	require.NoError(t, json.Unmarshal(env.Message, &sent))
	assert.Equal(t, "A", sent.SenderID)
	assert.Equal(t, "brakes squeak", sent.Content)
	assert.Equal(t, 1, sent.Seq)

	got := readEvent(t, b)
	require.Equal(t, ws.EventMessageReceived, got.Type)
	var received ws.MessageReceivedData
	require.NoError(t, json.Unmarshal(got.Data, &received))
	assert.Equal(t, sent.ID, received.Message.ID)
	assert.Equal(t, "brakes squeak", received.Message.Content)

	assert.Equal(t, 1, unreadCount(t, s, "B"))
	assert.Equal(t, 0, unreadCount(t, s, "A"))

	emit(t, b, ws.EventJoinChat, chatID)
	require.Equal(t, ws.EventChatJoined, readEvent(t, b).Type)

	status, env = s.do(t, "B", http.MethodPatch, "/api/chat/"+chatID+"/read", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	var readChat entity.Chat
	require.NoError(t, json.Unmarshal(env.Chat, &readChat))
	assert.Equal(t, chatID, readChat.ID)
	assert.Equal(t, 0, readChat.UnreadFor("B"))

	read := readEvent(t, b)
	require.Equal(t, ws.EventMessagesRead, read.Type)
	var readData ws.MessagesReadData
	require.NoError(t, json.Unmarshal(read.Data, &readData))
	assert.Equal(t, ws.MessagesReadData{ChatID: chatID, UserID: "B"}, readData)

	assert.Equal(t, 0, unreadCount(t, s, "B"))
}

// A message sent over the socket is visible over REST, and opening the chat
// clears the unread counter.
func TestSocketSendVisibleOverREST(t *testing.T) {
	s := newServer(t, defaultLimits())
	chatID := createChat(t, s)
	a := s.dial(t, "A")

	emit(t, a, ws.EventNewMessage, ws.NewMessageData{ChatID: chatID, Message: "on my way", SenderID: "A"})
	emit(t, a, ws.EventPing, nil)
	require.Equal(t, ws.EventPong, readEvent(t, a).Type)

	assert.Equal(t, 1, unreadCount(t, s, "B"))

	status, env := s.do(t, "B", http.MethodGet, "/api/chat/"+chatID+"/messages", nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Messages    []entity.Message `json:"messages"`
		UnreadCount int              `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "on my way", view.Messages[0].Content)
	assert.Equal(t, 0, view.UnreadCount)

	assert.Equal(t, 0, unreadCount(t, s, "B"))
}

func TestChatAccessErrors(t *testing.T) {
	s := newServer(t, defaultLimits())
	chatID := createChat(t, s)

	status, env := s.do(t, "C", http.MethodGet, "/api/chat/"+chatID+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, "C", http.MethodPost, "/api/chat/messages", map[string]string{"chatId": chatID, "content": "hi"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, "A", http.MethodGet, "/api/chat/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, _ = s.do(t, "A", http.MethodPost, "/api/chat/messages", map[string]string{"chatId": chatID, "content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEditAndDeleteOwnMessage(t *testing.T) {
	s := newServer(t, defaultLimits())
	chatID := createChat(t, s)

	_, env := s.do(t, "A", http.MethodPost, "/api/chat/messages", map[string]string{"chatId": chatID, "content": "typo"})
	var sent entity.Message
	require.NoError(t, json.Unmarshal(env.Message, &sent))
	path := "/api/chat/" + chatID + "/messages/" + sent.ID

	status, _ := s.do(t, "B", http.MethodPut, path, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, "A", http.MethodPut, path, map[string]string{"content": "fixed"})
	require.Equal(t, http.StatusOK, status)
	var edited entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &edited))
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.Edited)

	status, env = s.do(t, "A", http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Message deleted successfully", env.text(t))
}

func TestListChatsPaginated(t *testing.T) {
	s := newServer(t, defaultLimits())
	createChat(t, s)

	status, env := s.do(t, "A", http.MethodGet, "/api/chat?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Total)
}

func TestUpdatePushToken(t *testing.T) {
	s := newServer(t, defaultLimits())

	status, _ := s.do(t, "A", http.MethodPut, "/api/users/push-token", map[string]string{"pushToken": "device-1"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, "A", http.MethodPut, "/api/users/push-token", map[string]string{"expoPushToken": "device-2"})
	assert.Equal(t, http.StatusOK, status)

	status, env := s.do(t, "A", http.MethodPut, "/api/users/push-token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestIPRateLimit(t *testing.T) {
	limits := defaultLimits()
	limits[ratelimit.ActionHTTP] = ratelimit.Limit{PerMinute: 1, Burst: 1}
	s := newServer(t, limits)

	status, _ := s.do(t, "A", http.MethodGet, "/api/chat/unread", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := s.do(t, "A", http.MethodGet, "/api/chat/unread", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
}

func TestDevUserCanChat(t *testing.T) {
	s := newServer(t, defaultLimits())

	status, env := s.do(t, "", http.MethodPost, "/_dev/users", map[string]string{"fullName": "Deniz", "userType": "mechanic"})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		Token string      `json:"token"`
		User  entity.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.Token)
	require.NotEmpty(t, created.User.ID)
	s.tokens["D"] = created.Token

	status, _ = s.do(t, "D", http.MethodPost, "/api/chat", map[string]string{"participantId": "A"})
	assert.Equal(t, http.StatusCreated, status)

	status, env = s.do(t, "", http.MethodGet, "/_dev/token/"+created.User.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"token"`)

	status, _ = s.do(t, "", http.MethodGet, "/_dev/token/nobody", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

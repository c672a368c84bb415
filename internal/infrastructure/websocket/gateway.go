package websocket

import (
	"context"

	"github.com/gorilla/websocket"

	"repairhub/internal/domain/entity"
	"repairhub/internal/usecase"
	"repairhub/pkg/logger"
)

// ChatService is the processing core the gateway drives.
type ChatService interface {
	ProcessNewMessage(ctx context.Context, chatID, senderID, content string) (*usecase.NewMessageResult, error)
	ProcessMarkAsRead(ctx context.Context, chatID, userID string) (*usecase.ReadResult, error)
	CanJoinChat(ctx context.Context, chatID, userID string) error
}

type MessageReceivedData struct {
	ChatID  string         `json:"chatId"`
	Message entity.Message `json:"message"`
}

type MessagesReadData struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Gateway is the realtime entry point. One instance serves every socket and
// is shared with the REST handlers so both paths fan out the same way.
type Gateway struct {
	manager *Manager
	chats   ChatService
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewGateway(manager *Manager, chats ChatService) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		manager: manager,
		chats:   chats,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (g *Gateway) Manager() *Manager {
	return g.manager
}

// Serve takes over an upgraded connection for userID. It returns once the
// pumps are running.
func (g *Gateway) Serve(conn *websocket.Conn, userID string) error {
	client := NewClient(userID, conn)
	if err := g.manager.Register(client); err != nil {
		conn.Close()
		return err
	}

	go client.writePump()
	go client.readPump(g.manager, g.handleClientMessage)

	g.manager.Send(client, EventConnected, ConnectedData{UserID: userID})
	return nil
}

// BroadcastNewMessage emits "message received" to the chat room and to the
// user room of every participant other than the sender.
func (g *Gateway) BroadcastNewMessage(res *usecase.NewMessageResult) {
	chatID := res.Chat.ID
	rooms := []string{ChatRoom(chatID)}
	for _, p := range res.Chat.OtherParticipants(res.Message.SenderID) {
		rooms = append(rooms, UserRoom(p))
	}

	n := g.manager.EmitToRooms(EventMessageReceived, MessageReceivedData{
		ChatID:  chatID,
		Message: *res.Message,
	}, rooms...)
	logger.Debug("message received fan-out: %s", logger.Fields("chat", chatID, "connections", n))
}

// BroadcastMessagesRead emits "messages read" to the chat room.
func (g *Gateway) BroadcastMessagesRead(chatID, userID string) {
	g.manager.EmitToRooms(EventMessagesRead, MessagesReadData{ChatID: chatID, UserID: userID}, ChatRoom(chatID))
}

// Shutdown stops event processing and closes every connection.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.cancel()
	g.manager.Shutdown()
	return ctx.Err()
}

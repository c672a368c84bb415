package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "repairhub/pkg/errors"
	"repairhub/pkg/logger"
)

// Socket event names.
const (
	EventConnected       = "connected"
	EventJoinChat        = "join chat"
	EventChatJoined      = "chat joined"
	EventLeaveChat       = "leave chat"
	EventNewMessage      = "new message"
	EventMessageReceived = "message received"
	EventMarkAsRead      = "mark as read"
	EventMessagesRead    = "messages read"
	EventPing            = "ping"
	EventPong            = "pong"
)

// eventTimeout bounds the processing of one inbound event.
const eventTimeout = 10 * time.Second

// Event is the frame exchanged in both directions.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type ChatRef struct {
	ChatID string `json:"chatId"`
}

type NewMessageData struct {
	ChatID   string `json:"chatId"`
	Message  string `json:"message"`
	Content  string `json:"content,omitempty"`
	SenderID string `json:"senderId,omitempty"`
}

type MarkAsReadData struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId,omitempty"`
}

type ConnectedData struct {
	UserID string `json:"userId"`
}

// chatIDFrom accepts either a bare JSON string or {"chatId": "..."}.
func chatIDFrom(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var ref ChatRef
	if err := json.Unmarshal(raw, &ref); err == nil {
		return strings.TrimSpace(ref.ChatID)
	}
	return ""
}

// handleClientMessage dispatches one inbound frame. Failures are logged and
// nothing is sent back.
func (g *Gateway) handleClientMessage(c *Client, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.Warn("invalid socket frame from user %s: %v", c.UserID, err)
		return
	}

	ctx, cancel := context.WithTimeout(g.ctx, eventTimeout)
	defer cancel()

	logger.Debug("socket event %q from user %s", event.Type, c.UserID)

	switch event.Type {
	case EventPing:
		g.manager.Send(c, EventPong, struct{}{})

	case EventJoinChat:
		g.handleJoinChat(ctx, c, event.Data)

	case EventLeaveChat:
		if chatID := chatIDFrom(event.Data); chatID != "" {
			g.manager.Leave(c, ChatRoom(chatID))
		}

	case EventNewMessage:
		g.handleNewMessage(ctx, c, event.Data)

	case EventMarkAsRead:
		g.handleMarkAsRead(ctx, c, event.Data)

	default:
		logger.Warn("unhandled socket event %q from user %s", event.Type, c.UserID)
	}
}

func (g *Gateway) handleJoinChat(ctx context.Context, c *Client, data json.RawMessage) {
	chatID := chatIDFrom(data)
	if chatID == "" {
		logger.Warn("join chat without chatId from user %s", c.UserID)
		return
	}

	if err := g.chats.CanJoinChat(ctx, chatID, c.UserID); err != nil {
		logger.Warn("join chat refused: %s", logger.Fields("user", c.UserID, "chat", chatID, "code", apperrors.CodeOf(err), "err", err))
		return
	}

	g.manager.Join(c, ChatRoom(chatID))
	g.manager.Send(c, EventChatJoined, ChatRef{ChatID: chatID})
}

func (g *Gateway) handleNewMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var payload NewMessageData
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("invalid new message payload from user %s: %v", c.UserID, err)
		return
	}
	if payload.SenderID != "" && payload.SenderID != c.UserID {
		logger.Warn("new message rejected, senderId mismatch: %s", logger.Fields("user", c.UserID, "claimed", payload.SenderID))
		return
	}

	content := payload.Message
	if content == "" {
		content = payload.Content
	}

	res, err := g.chats.ProcessNewMessage(ctx, payload.ChatID, c.UserID, content)
	if err != nil {
		logger.Warn("new message failed: %s", logger.Fields("user", c.UserID, "chat", payload.ChatID, "code", apperrors.CodeOf(err), "err", err))
		return
	}

	g.BroadcastNewMessage(res)
}

func (g *Gateway) handleMarkAsRead(ctx context.Context, c *Client, data json.RawMessage) {
	var payload MarkAsReadData
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("invalid mark as read payload from user %s: %v", c.UserID, err)
		return
	}
	if payload.UserID != "" && payload.UserID != c.UserID {
		logger.Warn("mark as read rejected, userId mismatch: %s", logger.Fields("user", c.UserID, "claimed", payload.UserID))
		return
	}

	res, err := g.chats.ProcessMarkAsRead(ctx, payload.ChatID, c.UserID)
	if err != nil {
		logger.Warn("mark as read failed: %s", logger.Fields("user", c.UserID, "chat", payload.ChatID, "code", apperrors.CodeOf(err), "err", err))
		return
	}

	g.BroadcastMessagesRead(res.Chat.ID, res.UserID)
}

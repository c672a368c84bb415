package handler

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/usecase"
	"repairhub/pkg/response"
	"repairhub/pkg/utils"
)

const defaultChatPageSize = 20

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
	broadcaster ChatBroadcaster
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase, broadcaster ChatBroadcaster) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
		broadcaster: broadcaster,
	}
}

type createChatRequest struct {
	ParticipantID   string `json:"participantId" validate:"required"`
	RepairListingID string `json:"repairListingId"`
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type updateMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// CreateChat returns the chat between the caller and participantId, creating
// it when needed. 201 for a new chat, 200 for an existing one.
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, created, err := h.chatUseCase.CreateChat(c.Request().Context(), currentUserID(c), usecase.CreateChatInput{
		ParticipantID:   req.ParticipantID,
		RepairListingID: req.RepairListingID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	if created {
		return response.Created(c, chat)
	}
	return response.Success(c, chat)
}

// GetUserChats lists the caller's chats, most recent first.
func (h *ChatHandler) GetUserChats(c echo.Context) error {
	p := utils.GetPaginationParams(c, defaultChatPageSize)

	chats, total, err := h.chatUseCase.GetUserChats(c.Request().Context(), currentUserID(c), p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, chats, total, p.Page, p.PageSize)
}

func (h *ChatHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.chatUseCase.GetUnreadCount(c.Request().Context(), currentUserID(c))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"unreadCount": count})
}

// GetChatMessages returns the chat with its history. Opening a chat marks
// it read for the caller, and the chat room is told so.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	view, read, err := h.chatUseCase.GetChatMessages(c.Request().Context(), c.Param("chatId"), currentUserID(c))
	if err != nil {
		return response.Error(c, err)
	}

	h.broadcaster.BroadcastMessagesRead(read.Chat.ID, read.UserID)
	return response.Success(c, view)
}

// SendMessage is the REST twin of the "new message" socket event.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	res, err := h.chatUseCase.ProcessNewMessage(c.Request().Context(), req.ChatID, currentUserID(c), req.Content)
	if err != nil {
		return response.Error(c, err)
	}

	h.broadcaster.BroadcastNewMessage(res)
	return response.MessageCreated(c, res.Message)
}

// MarkAsRead is the REST twin of the "mark as read" socket event.
func (h *ChatHandler) MarkAsRead(c echo.Context) error {
	read, err := h.chatUseCase.ProcessMarkAsRead(c.Request().Context(), c.Param("chatId"), currentUserID(c))
	if err != nil {
		return response.Error(c, err)
	}

	h.broadcaster.BroadcastMessagesRead(read.Chat.ID, read.UserID)
	return response.ChatSuccess(c, read.Chat)
}

func (h *ChatHandler) UpdateMessage(c echo.Context) error {
	var req updateMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.chatUseCase.UpdateMessage(c.Request().Context(), c.Param("chatId"), c.Param("messageId"), currentUserID(c), req.Content)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, msg)
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	if err := h.chatUseCase.DeleteMessage(c.Request().Context(), c.Param("chatId"), c.Param("messageId"), currentUserID(c)); err != nil {
		return response.Error(c, err)
	}

	return response.SuccessMessage(c, "Message deleted successfully")
}

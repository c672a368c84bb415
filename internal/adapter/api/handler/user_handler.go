package handler

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/usecase"
	"repairhub/pkg/response"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

// expoPushToken is the field name older mobile builds send.
type updatePushTokenRequest struct {
	PushToken     string `json:"pushToken"`
	ExpoPushToken string `json:"expoPushToken"`
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.userUseCase.GetProfile(c.Request().Context(), currentUserID(c))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, user)
}

// UpdatePushToken stores the device token message notifications go to.
func (h *UserHandler) UpdatePushToken(c echo.Context) error {
	var req updatePushTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	token := req.PushToken
	if token == "" {
		token = req.ExpoPushToken
	}

	if err := h.userUseCase.UpdatePushToken(c.Request().Context(), currentUserID(c), token); err != nil {
		return response.Error(c, err)
	}

	return response.SuccessMessage(c, "Push token updated")
}

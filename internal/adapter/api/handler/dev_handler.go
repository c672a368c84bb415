package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/pkg/response"
)

// TokenIssuer mints bearer tokens for a user id.
type TokenIssuer interface {
	GenerateToken(userID string) (string, time.Time, error)
}

// DevHandler seeds users and issues tokens so the chat can be driven locally
// without the account service. Only mounted in development.
type DevHandler struct {
	issuer   TokenIssuer
	userRepo repository.UserRepository
}

func NewDevHandler(issuer TokenIssuer, userRepo repository.UserRepository) *DevHandler {
	return &DevHandler{
		issuer:   issuer,
		userRepo: userRepo,
	}
}

type createDevUserRequest struct {
	ID       string `json:"id"`
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	UserType string `json:"userType" validate:"omitempty,oneof=vehicle_owner mechanic"`
}

func (h *DevHandler) CreateUser(c echo.Context) error {
	var req createDevUserRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	now := time.Now().UTC()
	user := &entity.User{
		ID:        req.ID,
		FullName:  req.FullName,
		Email:     req.Email,
		UserType:  req.UserType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.UserType == "" {
		user.UserType = entity.UserTypeVehicleOwner
	}

	if err := h.userRepo.Create(c.Request().Context(), user); err != nil {
		return response.Error(c, err)
	}

	return h.respondWithToken(c, user, true)
}

func (h *DevHandler) GenerateToken(c echo.Context) error {
	user, err := h.userRepo.GetByID(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return response.Error(c, err)
	}

	return h.respondWithToken(c, user, false)
}

func (h *DevHandler) respondWithToken(c echo.Context, user *entity.User, created bool) error {
	token, expiresAt, err := h.issuer.GenerateToken(user.ID)
	if err != nil {
		return response.Error(c, err)
	}

	data := map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt,
		"user":      user,
	}
	if created {
		return response.Created(c, data)
	}
	return response.Success(c, data)
}

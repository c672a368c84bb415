package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"repairhub/internal/infrastructure/auth"
	"repairhub/pkg/errors"
	"repairhub/pkg/response"
)

// UserIDKey is the echo context key holding the authenticated user id.
const UserIDKey = "uid"

type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		token, ok := BearerToken(authHeader)
		if !ok {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		userID, err := m.verifier.VerifyToken(c.Request().Context(), token)
		if err != nil {
			return response.Error(c, err)
		}

		c.Set(UserIDKey, userID)
		return next(c)
	}
}

// UserIDFromToken verifies a raw token outside the middleware chain, as the
// socket handshake does.
func (m *AuthMiddleware) UserIDFromToken(c echo.Context, token string) (string, error) {
	return m.verifier.VerifyToken(c.Request().Context(), token)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

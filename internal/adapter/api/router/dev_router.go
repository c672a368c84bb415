package router

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/handler"
)

// SetupDevRouter mounts the local tooling routes. A nil handler or any
// environment other than development mounts nothing.
func SetupDevRouter(e *echo.Echo, environment string, devHandler *handler.DevHandler) {
	if environment != "development" || devHandler == nil {
		return
	}

	e.POST("/_dev/users", devHandler.CreateUser)
	e.GET("/_dev/token/:userId", devHandler.GenerateToken)
}

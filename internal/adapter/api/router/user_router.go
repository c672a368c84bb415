package router

import (
	"github.com/labstack/echo/v4"

	"repairhub/internal/adapter/api/handler"
	"repairhub/internal/adapter/api/middleware"
)

func SetupUserRouter(api *echo.Group, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	users := api.Group("/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("/me", userHandler.GetProfile)
	users.PUT("/push-token", userHandler.UpdatePushToken)
}

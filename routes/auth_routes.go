package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/skilltreehq/skilltree_backend/controllers"
	"github.com/skilltreehq/skilltree_backend/middleware"
)

// RegisterAuthRoutes sets up authentication routes.
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	// Public authentication routes
	e.POST("/api/auth/signup", authController.Signup)
	e.POST("/api/auth/login", authController.Login)
	e.POST("/api/auth/refresh-token", authController.RefreshToken)

	// Authenticated session management
	r := e.Group("/api/auth")
	r.Use(middleware.JWTMiddleware())
	r.POST("/logout", authController.Logout)
	r.POST("/change-password", authController.ChangePassword)
}

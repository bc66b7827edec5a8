package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/skilltreehq/skilltree_backend/controllers"
	"github.com/skilltreehq/skilltree_backend/middleware"
	"github.com/skilltreehq/skilltree_backend/models"
)

// RegisterUserRoutes sets up user profile, referral and admin user routes.
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController) {
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())

	r.GET("/users/profile", userController.GetProfile)
	r.GET("/users/referral-data", userController.GetReferralData)
	r.GET("/users/stats", userController.GetStats)
	r.GET("/users/payouts", userController.GetPayoutHistory)

	// Admin user management
	a := r.Group("/admin")
	a.Use(middleware.RequireRole(models.RoleAdmin))
	a.GET("/users", userController.GetAllUsers)
	a.PUT("/users/:id/status", userController.UpdateUserStatus)
}

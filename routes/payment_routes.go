package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/skilltreehq/skilltree_backend/controllers"
	"github.com/skilltreehq/skilltree_backend/middleware"
	"github.com/skilltreehq/skilltree_backend/models"
)

// RegisterPaymentRoutes sets up activation payment and withdrawal routes.
func RegisterPaymentRoutes(e *echo.Echo, paymentController *controllers.PaymentController, withdrawalController *controllers.WithdrawalController) {
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())

	r.POST("/payments", paymentController.CreatePayment)
	r.POST("/withdrawals", withdrawalController.RequestWithdrawal)

	// Admin review
	a := r.Group("/admin")
	a.Use(middleware.RequireRole(models.RoleAdmin))
	a.GET("/payments", paymentController.GetAllPayments)
	a.POST("/payments/confirm", paymentController.ConfirmPayment)
	a.GET("/withdrawals", withdrawalController.GetAllWithdrawals)
	a.POST("/withdrawals/process", withdrawalController.ProcessWithdrawal)
}

package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/skilltreehq/skilltree_backend/controllers"
	"github.com/skilltreehq/skilltree_backend/middleware"
	"github.com/skilltreehq/skilltree_backend/models"
)

// RegisterCourseRoutes sets up the catalogue, purchase and admin course routes.
func RegisterCourseRoutes(e *echo.Echo, courseController *controllers.CourseController, purchaseController *controllers.PurchaseController) {
	// Public catalogue
	e.GET("/api/courses", courseController.GetAllCourses)
	e.GET("/api/courses/:id", courseController.GetCourse)

	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())
	r.POST("/courses/purchase", purchaseController.PurchaseCourse)
	r.GET("/affiliate/stats", purchaseController.GetAffiliateStats)

	// Admin course management
	a := r.Group("/admin")
	a.Use(middleware.RequireRole(models.RoleAdmin))
	a.POST("/courses", courseController.CreateCourse)
	a.PUT("/courses/:id", courseController.UpdateCourse)
	a.DELETE("/courses/:id", courseController.DeleteCourse)
	a.POST("/sales/:id/distribute", purchaseController.RetrySaleDistribution)
}

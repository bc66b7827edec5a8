package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/skilltreehq/skilltree_backend/commission"
	"github.com/skilltreehq/skilltree_backend/config"
	"github.com/skilltreehq/skilltree_backend/controllers"
	"github.com/skilltreehq/skilltree_backend/middleware"
	"github.com/skilltreehq/skilltree_backend/repositories"
	"github.com/skilltreehq/skilltree_backend/routes"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis
	config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()
	db := client.Database(config.DBName())

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "SkillTree Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Commission engine shared by payment confirmation and course purchases
	rates := commission.DefaultRateTable()
	store := repositories.NewCommissionStore(client, db)
	engine := commission.NewEngine(store, rates)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)

	// Initialize controllers
	authController := controllers.NewAuthController(db, userRepo, rates)
	userController := controllers.NewUserController(db, userRepo, config.GetRedisClient())
	courseController := controllers.NewCourseController(db, config.GetRedisClient())
	purchaseController := controllers.NewPurchaseController(client, db, engine, rates)
	paymentController := controllers.NewPaymentController(client, db, engine)
	withdrawalController := controllers.NewWithdrawalController(client, db)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterUserRoutes(e, userController)
	routes.RegisterCourseRoutes(e, courseController, purchaseController)
	routes.RegisterPaymentRoutes(e, paymentController, withdrawalController)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

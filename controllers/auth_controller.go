// controllers/auth_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/skilltreehq/skilltree_backend/commission"
	"github.com/skilltreehq/skilltree_backend/middleware"
	"github.com/skilltreehq/skilltree_backend/models"
	"github.com/skilltreehq/skilltree_backend/repositories"
	"github.com/skilltreehq/skilltree_backend/utils"
)

type AuthController struct {
	db       *mongo.Database
	users    *mongo.Collection
	userRepo *repositories.UserRepository
	rates    *commission.RateTable
}

func NewAuthController(db *mongo.Database, userRepo *repositories.UserRepository, rates *commission.RateTable) *AuthController {
	return &AuthController{
		db:       db,
		users:    db.Collection("users"),
		userRepo: userRepo,
		rates:    rates,
	}
}

// Signup registers a new user. When a referral code is supplied the new
// user is attached under its owner: the recruiter back-reference is set
// and the upline cache is built from the recruiter's own cache, capped at
// the maximum commission depth. Self-reference and cycles are impossible
// by construction here - the new user does not exist yet - which is the
// recruitment-time validation the distribution path relies on.
func (ac *AuthController) Signup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var recruiter *models.User
	if req.ReferralCode != "" {
		found, err := ac.userRepo.FindByReferralCode(ctx, strings.TrimSpace(req.ReferralCode))
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return c.JSON(http.StatusBadRequest, models.Response{
					Status:  http.StatusBadRequest,
					Message: "Invalid referral code",
				})
			}
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Database error",
				Data:    err.Error(),
			})
		}
		recruiter = found
	}

	count, err := ac.users.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}
	if count > 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	referralCode, err := utils.GenerateUniqueReferralCode(ctx, ac.users)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate referral code",
		})
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		Password:     string(hashedPassword),
		FullName:     req.FullName,
		Role:         models.RoleUser,
		Status:       models.StatusInactive,
		ReferralCode: referralCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if recruiter != nil {
		user.RecruiterID = &recruiter.ID
		user.Uplines = buildUplineCache(recruiter, ac.rates.MaxDepth())
	}

	if _, err := ac.users.InsertOne(ctx, user); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create user",
			Data:    err.Error(),
		})
	}

	if recruiter != nil {
		_, err = ac.users.UpdateByID(ctx, recruiter.ID, bson.M{
			"$push": bson.M{"downline": user.ID},
			"$inc":  bson.M{"directRecruits": 1},
			"$set":  bson.M{"updatedAt": now},
		})
		if err != nil {
			log.Printf("Failed to update recruiter %s downline: %v", recruiter.ID.Hex(), err)
		}
	}

	user.Password = ""
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "User created successfully",
		Data:    user,
	})
}

// buildUplineCache derives the new user's ancestor list from the
// recruiter's: the recruiter first, then the recruiter's own uplines,
// capped at maxDepth. Repeated entries are dropped so a damaged cache is
// never propagated further down the tree.
func buildUplineCache(recruiter *models.User, maxDepth int) []primitive.ObjectID {
	uplines := make([]primitive.ObjectID, 0, maxDepth)
	seen := map[primitive.ObjectID]bool{}

	for _, id := range append([]primitive.ObjectID{recruiter.ID}, recruiter.Uplines...) {
		if len(uplines) == maxDepth {
			break
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		uplines = append(uplines, id)
	}
	return uplines
}

// Login authenticates a user and issues an access/refresh token pair.
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	user, err := ac.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User does not exist",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Incorrect password",
		})
	}

	accessToken, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate tokens",
		})
	}

	if err := ac.userRepo.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		log.Printf("Failed to store refresh token for %s: %v", user.ID.Hex(), err)
	}

	user.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User logged in successfully",
		Data: map[string]interface{}{
			"user":         user,
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// RefreshToken exchanges a valid refresh token for a new token pair.
func (ac *AuthController) RefreshToken(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		// Fall back to the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			req.RefreshToken = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Refresh token is required",
		})
	}

	claims, err := middleware.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid refresh token",
		})
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid refresh token",
		})
	}

	user, err := ac.userRepo.FindByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid refresh token",
		})
	}
	if user.RefreshToken != req.RefreshToken {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Refresh token expired or used",
		})
	}

	accessToken, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate tokens",
		})
	}
	if err := ac.userRepo.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		log.Printf("Failed to rotate refresh token for %s: %v", user.ID.Hex(), err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Access token refreshed successfully",
		Data: map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// Logout invalidates the stored refresh token.
func (ac *AuthController) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	if err := ac.userRepo.UpdateRefreshToken(ctx, userID, ""); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error while logging out",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User logged out successfully",
	})
}

// ChangePassword verifies the old password and stores a new hash.
func (ac *AuthController) ChangePassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	var req models.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	user, err := ac.userRepo.FindByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid password",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	_, err = ac.users.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"password": string(hashedPassword), "updatedAt": time.Now()},
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update password",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password changed successfully",
	})
}

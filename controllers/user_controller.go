// controllers/user_controller.go
package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skilltreehq/skilltree_backend/config"
	"github.com/skilltreehq/skilltree_backend/models"
	"github.com/skilltreehq/skilltree_backend/repositories"
	"github.com/skilltreehq/skilltree_backend/utils"
)

type UserController struct {
	db       *mongo.Database
	users    *mongo.Collection
	payouts  *mongo.Collection
	userRepo *repositories.UserRepository
	redis    *redis.Client
}

func NewUserController(db *mongo.Database, userRepo *repositories.UserRepository, redisClient *redis.Client) *UserController {
	return &UserController{
		db:       db,
		users:    db.Collection("users"),
		payouts:  db.Collection("payouts"),
		userRepo: userRepo,
		redis:    redisClient,
	}
}

// GetProfile returns the authenticated user's own record.
func (uc *UserController) GetProfile(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, uc.db)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile fetched successfully",
		Data:    user,
	})
}

// GetReferralData returns the user's referral code, share link and
// recruitment counts.
func (uc *UserController) GetReferralData(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, uc.db)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: err.Error(),
		})
	}

	baseURL := os.Getenv("APP_BASE_URL")
	if baseURL == "" {
		baseURL = "https://skilltree.app"
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral data fetched successfully",
		Data: models.ReferralData{
			ReferralCode:   user.ReferralCode,
			ReferralLink:   baseURL + "/register?ref=" + user.ReferralCode,
			DirectRecruits: user.DirectRecruits,
			DownlineCount:  len(user.Downline),
		},
	})
}

// GetStats returns earnings and downline counts for the dashboard,
// cached in Redis for a few minutes.
func (uc *UserController) GetStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	cacheKey := config.UserStatsCacheKey(userID.Hex())
	if uc.redis != nil {
		if cached, err := uc.redis.Get(ctx, cacheKey).Result(); err == nil {
			var stats models.UserStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return c.JSON(http.StatusOK, models.Response{
					Status:  http.StatusOK,
					Message: "User stats fetched successfully",
					Data:    stats,
				})
			}
		}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"_id": userID}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "downline",
			"foreignField": "_id",
			"as":           "downlineDetails",
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"fullName":       1,
			"email":          1,
			"balance":        1,
			"totalEarned":    1,
			"directRecruits": 1,
			"downlineCount":  bson.M{"$size": "$downlineDetails"},
		}}},
	}

	cursor, err := uc.users.Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to aggregate user stats",
			Data:    err.Error(),
		})
	}
	defer cursor.Close(ctx)

	var results []models.UserStats
	if err := cursor.All(ctx, &results); err != nil || len(results) == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	stats := results[0]

	if uc.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := uc.redis.Set(ctx, cacheKey, payload, config.UserStatsCacheTTL).Err(); err != nil {
				log.Printf("Failed to cache user stats: %v", err)
			}
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User stats fetched successfully",
		Data:    stats,
	})
}

// GetPayoutHistory returns the user's commission ledger entries, newest
// first.
func (uc *UserController) GetPayoutHistory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(100)
	cursor, err := uc.payouts.Find(ctx, bson.M{"recipientId": userID}, findOpts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch payout history",
			Data:    err.Error(),
		})
	}
	defer cursor.Close(ctx)

	payoutRecords := []models.PayoutRecord{}
	if err := cursor.All(ctx, &payoutRecords); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode payout history",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout history fetched successfully",
		Data:    payoutRecords,
	})
}

// GetAllUsers returns every user grouped by status. Admin only.
func (uc *UserController) GetAllUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$project", Value: bson.M{"password": 0, "refreshToken": 0}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"users": bson.M{"$push": "$$ROOT"},
		}}},
	}

	cursor, err := uc.users.Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch users",
			Data:    err.Error(),
		})
	}
	defer cursor.Close(ctx)

	var groups []bson.M
	if err := cursor.All(ctx, &groups); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode users",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "All users sent successfully",
		Data:    groups,
	})
}

// UpdateUserStatus lets an admin flip a user's status or role.
func (uc *UserController) UpdateUserStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := parseObjectID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	var req models.UpdateUserStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updates := bson.M{}
	if req.Status != nil {
		if *req.Status != models.StatusActive && *req.Status != models.StatusInactive {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid status value",
			})
		}
		updates["status"] = *req.Status
	}
	if req.Role != nil {
		if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid role value",
			})
		}
		updates["role"] = *req.Role
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No fields to update",
		})
	}
	updates["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"password": 0, "refreshToken": 0})
	var updated models.User
	err = uc.users.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": updates}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update user",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User status updated successfully",
		Data:    updated,
	})
}

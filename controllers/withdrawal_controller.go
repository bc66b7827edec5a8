// controllers/withdrawal_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skilltreehq/skilltree_backend/models"
	"github.com/skilltreehq/skilltree_backend/repositories"
	"github.com/skilltreehq/skilltree_backend/utils"
)

type WithdrawalController struct {
	client      *mongo.Client
	db          *mongo.Database
	users       *mongo.Collection
	withdrawals *mongo.Collection
}

func NewWithdrawalController(client *mongo.Client, db *mongo.Database) *WithdrawalController {
	return &WithdrawalController{
		client:      client,
		db:          db,
		users:       db.Collection("users"),
		withdrawals: db.Collection("withdrawals"),
	}
}

// RequestWithdrawal lets an active user with enough lifetime earnings ask
// to cash out part of their balance.
func (wc *WithdrawalController) RequestWithdrawal(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := utils.GetUserFromToken(c, wc.db)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "User not found",
		})
	}

	var req models.WithdrawalRequest
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

	if !user.IsActive() {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Activate your account before requesting a withdrawal",
		})
	}
	if user.TotalEarned < models.MinWithdrawalEarnings {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Total earnings are below the withdrawal threshold",
		})
	}
	if req.Number != req.ConfirmNumber {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Account numbers do not match",
		})
	}
	if req.Amount <= 0 || req.Amount > user.Balance {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Requested amount exceeds available balance",
		})
	}

	now := time.Now()
	withdrawal := models.Withdrawal{
		ID:        primitive.NewObjectID(),
		Reference: uuid.NewString(),
		UserID:    user.ID,
		Amount:    req.Amount,
		Method:    req.Method,
		Number:    req.Number,
		Status:    models.WithdrawalPending,
		CreatedAt: now,
	}
	if _, err := wc.withdrawals.InsertOne(ctx, withdrawal); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create withdrawal request",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Withdrawal request submitted",
		Data:    withdrawal,
	})
}

// ProcessWithdrawal approves or rejects a pending request. Approval
// debits the balance inside a transaction and refuses to overdraw even
// if the balance moved since the request was filed. Admin only.
func (wc *WithdrawalController) ProcessWithdrawal(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var req models.ProcessWithdrawalRequest
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
	withdrawalID, err := parseObjectID(req.WithdrawalID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid withdrawal ID",
		})
	}

	var withdrawal models.Withdrawal
	err = wc.withdrawals.FindOne(ctx, bson.M{"_id": withdrawalID}).Decode(&withdrawal)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Withdrawal not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if withdrawal.Status != models.WithdrawalPending {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Withdrawal is not pending",
		})
	}

	now := time.Now()
	if req.Action == "reject" {
		update := bson.M{"$set": bson.M{
			"status":          models.WithdrawalRejected,
			"rejectionReason": req.Reason,
			"processedAt":     now,
		}}
		if _, err := wc.withdrawals.UpdateByID(ctx, withdrawal.ID, update); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to reject withdrawal",
			})
		}
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Withdrawal rejected",
		})
	}

	err = repositories.WithTransaction(ctx, wc.client, func(sc mongo.SessionContext) error {
		// The balance filter makes overdrawing impossible even when the
		// balance changed between request and approval.
		res, err := wc.users.UpdateOne(sc,
			bson.M{"_id": withdrawal.UserID, "balance": bson.M{"$gte": withdrawal.Amount}},
			bson.M{"$inc": bson.M{"balance": -withdrawal.Amount}, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return err
		}
		if res.ModifiedCount == 0 {
			return errInsufficientBalance
		}
		_, err = wc.withdrawals.UpdateByID(sc, withdrawal.ID, bson.M{
			"$set": bson.M{"status": models.WithdrawalApproved, "processedAt": now},
		})
		return err
	})
	if err == errInsufficientBalance {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "User balance no longer covers the requested amount",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to approve withdrawal",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal approved successfully",
	})
}

// GetAllWithdrawals lists withdrawal requests for review. Admin only.
func (wc *WithdrawalController) GetAllWithdrawals(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := wc.withdrawals.Find(ctx, filter, findOpts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error while getting all withdrawals",
			Data:    err.Error(),
		})
	}
	defer cursor.Close(ctx)

	withdrawals := []models.Withdrawal{}
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error decoding withdrawals",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "All withdrawals sent successfully",
		Data:    withdrawals,
	})
}

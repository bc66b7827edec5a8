// controllers/payment_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skilltreehq/skilltree_backend/commission"
	"github.com/skilltreehq/skilltree_backend/models"
	"github.com/skilltreehq/skilltree_backend/repositories"
	"github.com/skilltreehq/skilltree_backend/utils"
)

// PaymentController handles activation payments and the operator
// confirmation that marks a user active and pays their upline.
type PaymentController struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *mongo.Collection
	payments *mongo.Collection
	engine   *commission.Engine
}

func NewPaymentController(client *mongo.Client, db *mongo.Database, engine *commission.Engine) *PaymentController {
	return &PaymentController{
		client:   client,
		db:       db,
		users:    db.Collection("users"),
		payments: db.Collection("payments"),
		engine:   engine,
	}
}

// CreatePayment records a pending activation payment. The transfer
// happens out of band; an admin confirms it later.
func (pc *PaymentController) CreatePayment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	var req models.PaymentRequest
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
	if req.Amount != models.ActivationAmount {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Activation payment must be exactly the activation amount",
		})
	}

	now := time.Now()
	payment := models.Payment{
		ID:          primitive.NewObjectID(),
		Reference:   uuid.NewString(),
		UserID:      userID,
		FromNumber:  req.FromNumber,
		ToNumber:    req.ToNumber,
		Amount:      req.Amount,
		Status:      models.PaymentPending,
		PaymentDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := pc.payments.InsertOne(ctx, payment); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create payment",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "If your payment is verified your account will be activated shortly",
		Data:    payment,
	})
}

// ConfirmPayment marks a pending payment completed, activates the payer
// and distributes the activation commission up their chain. Admin only.
// Confirming an already-completed payment skips the status flip and only
// re-runs the distribution: if the upline was already paid the ledger
// makes it a no-op, and if a transient failure left the upline unpaid
// this is the recovery path.
func (pc *PaymentController) ConfirmPayment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var req models.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	paymentID, err := parseObjectID(req.PaymentID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid payment ID",
		})
	}

	var payment models.Payment
	err = pc.payments.FindOne(ctx, bson.M{"_id": paymentID}).Decode(&payment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Payment not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}

	if payment.Status == models.PaymentPending {
		if payment.Amount < models.ActivationAmount {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Payment amount is below the activation amount",
			})
		}

		now := time.Now()
		err = repositories.WithTransaction(ctx, pc.client, func(sc mongo.SessionContext) error {
			if _, err := pc.payments.UpdateByID(sc, payment.ID, bson.M{
				"$set": bson.M{"status": models.PaymentCompleted, "updatedAt": now},
			}); err != nil {
				return err
			}
			_, err := pc.users.UpdateByID(sc, payment.UserID, bson.M{
				"$set": bson.M{"status": models.StatusActive, "updatedAt": now},
			})
			return err
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to confirm payment",
				Data:    err.Error(),
			})
		}
	}

	result, err := pc.engine.Distribute(ctx, payment.ID.Hex(), payment.UserID,
		decimal.NewFromFloat(payment.Amount), commission.TypeActivation)
	if err != nil {
		log.Printf("Activation distribution for payment %s failed: %v", payment.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Payment confirmed but commission distribution failed",
			Data:    map[string]string{"eventId": payment.ID.Hex()},
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment confirmed successfully",
		Data: map[string]interface{}{
			"payment":          payment.ID,
			"totalDistributed": result.TotalDistributed,
			"payouts":          len(result.Payouts),
			"replayed":         result.Replayed,
		},
	})
}

// GetAllPayments lists payments for review. Admin only.
func (pc *PaymentController) GetAllPayments(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := pc.payments.Find(ctx, filter, findOpts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error while getting all payments",
			Data:    err.Error(),
		})
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error decoding payments",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "All payments sent successfully",
		Data:    payments,
	})
}

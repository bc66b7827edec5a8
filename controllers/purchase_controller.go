// controllers/purchase_controller.go
package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/skilltreehq/skilltree_backend/commission"
	"github.com/skilltreehq/skilltree_backend/models"
	"github.com/skilltreehq/skilltree_backend/repositories"
	"github.com/skilltreehq/skilltree_backend/utils"
)

// PurchaseController handles course purchases, the workflow that turns a
// sale into an affiliate credit plus an upline distribution.
type PurchaseController struct {
	client  *mongo.Client
	db      *mongo.Database
	courses *mongo.Collection
	users   *mongo.Collection
	sales   *mongo.Collection
	engine  *commission.Engine
	rates   *commission.RateTable
}

func NewPurchaseController(client *mongo.Client, db *mongo.Database, engine *commission.Engine, rates *commission.RateTable) *PurchaseController {
	return &PurchaseController{
		client:  client,
		db:      db,
		courses: db.Collection("courses"),
		users:   db.Collection("users"),
		sales:   db.Collection("sales"),
		engine:  engine,
		rates:   rates,
	}
}

// PurchaseCourse records a course purchase. With an affiliate code the
// sale is written and the affiliate credited the commission pool in one
// transaction, then the upline distribution runs keyed by the sale ID so
// a replayed request can never double-pay the chain.
func (pc *PurchaseController) PurchaseCourse(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buyerID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	var req models.PurchaseRequest
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

	courseID, err := parseObjectID(req.CourseID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid course ID",
		})
	}

	var course models.Course
	err = pc.courses.FindOne(ctx, bson.M{"_id": courseID, "status": models.CourseActive}).Decode(&course)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Course not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}

	if req.AffiliateCode == "" {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Course purchased successfully",
		})
	}

	var affiliate models.User
	err = pc.users.FindOne(ctx, bson.M{"referralCode": req.AffiliateCode}).Decode(&affiliate)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Affiliate not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if affiliate.ID == buyerID {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Cannot use your own affiliate code",
		})
	}

	price := decimal.NewFromFloat(course.Price)
	pool := pc.rates.PoolFor(commission.TypeCourseSale, price)

	sale := models.AffiliateSale{
		ID:          primitive.NewObjectID(),
		BuyerID:     buyerID,
		AffiliateID: affiliate.ID,
		CourseID:    course.ID,
		Amount:      course.Price,
		Commission:  pool.InexactFloat64(),
		CreatedAt:   time.Now(),
	}

	err = repositories.WithTransaction(ctx, pc.client, func(sc mongo.SessionContext) error {
		if _, err := pc.sales.InsertOne(sc, sale); err != nil {
			return err
		}
		// Inactive affiliates forfeit the pool, mirroring upline
		// eligibility. The sale itself is still recorded.
		if affiliate.IsActive() {
			_, err := pc.users.UpdateByID(sc, affiliate.ID, bson.M{
				"$inc": bson.M{
					"balance":     sale.Commission,
					"totalEarned": sale.Commission,
				},
				"$set": bson.M{"updatedAt": time.Now()},
			})
			return err
		}
		return nil
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to record sale",
			Data:    err.Error(),
		})
	}

	result, err := pc.engine.Distribute(ctx, sale.ID.Hex(), affiliate.ID, price, commission.TypeCourseSale)
	if err != nil {
		// The sale is committed; an admin can re-run the distribution
		// through RetrySaleDistribution with the sale ID returned here.
		log.Printf("Upline distribution for sale %s failed: %v", sale.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Sale recorded but commission distribution failed",
			Data:    map[string]string{"saleId": sale.ID.Hex()},
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Course purchased successfully",
		Data: map[string]interface{}{
			"sale":             sale,
			"totalDistributed": result.TotalDistributed,
			"payouts":          len(result.Payouts),
		},
	})
}

// RetrySaleDistribution re-runs the upline distribution for a recorded
// sale. Admin only. The ledger keys payouts by sale ID, so a sale whose
// upline was already paid comes back as a replayed no-op; the endpoint
// exists for sales whose distribution failed after the sale committed.
func (pc *PurchaseController) RetrySaleDistribution(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	saleID, err := parseObjectID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid sale ID",
		})
	}

	var sale models.AffiliateSale
	err = pc.sales.FindOne(ctx, bson.M{"_id": saleID}).Decode(&sale)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Sale not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}

	result, err := pc.engine.Distribute(ctx, sale.ID.Hex(), sale.AffiliateID,
		decimal.NewFromFloat(sale.Amount), commission.TypeCourseSale)
	if err != nil {
		log.Printf("Retried distribution for sale %s failed: %v", sale.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Commission distribution failed",
			Data:    map[string]string{"saleId": sale.ID.Hex()},
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Distribution completed successfully",
		Data: map[string]interface{}{
			"saleId":           sale.ID,
			"totalDistributed": result.TotalDistributed,
			"payouts":          len(result.Payouts),
			"replayed":         result.Replayed,
		},
	})
}

// GetAffiliateStats returns the authenticated user's affiliate sales
// summary.
func (pc *PurchaseController) GetAffiliateStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"affiliateId": userID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":             nil,
			"totalCommission": bson.M{"$sum": "$commission"},
			"totalSales":      bson.M{"$sum": 1},
		}}},
	}
	cursor, err := pc.sales.Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to aggregate affiliate stats",
		})
	}
	defer cursor.Close(ctx)

	stats := struct {
		TotalCommission float64 `bson:"totalCommission" json:"totalCommission"`
		TotalSales      int     `bson:"totalSales" json:"totalSales"`
	}{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&stats); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to decode affiliate stats",
			})
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate stats fetched successfully",
		Data:    stats,
	})
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// ActivationAmount is the fixed amount a user pays to activate their
// account and become commission-eligible.
const ActivationAmount = 100.0

// Payment is a user-submitted activation payment waiting for operator
// confirmation. There is no gateway integration; an admin verifies the
// transfer out of band and confirms the record.
type Payment struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Reference   string             `json:"reference" bson:"reference"`
	UserID      primitive.ObjectID `json:"userId" bson:"userId"`
	FromNumber  string             `json:"fromNumber" bson:"fromNumber"`
	ToNumber    string             `json:"toNumber" bson:"toNumber"`
	Amount      float64            `json:"amount" bson:"amount"`
	Status      string             `json:"status" bson:"status"`
	PaymentDate time.Time          `json:"paymentDate" bson:"paymentDate"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type PaymentRequest struct {
	FromNumber string  `json:"fromNumber" validate:"required"`
	ToNumber   string  `json:"toNumber" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
}

type ConfirmPaymentRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
}

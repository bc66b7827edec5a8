package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Withdrawal statuses.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Supported payout methods (mobile money providers).
const (
	MethodBkash  = "bkash"
	MethodRocket = "rocket"
	MethodNagad  = "nagad"
)

// MinWithdrawalEarnings is the lifetime-earnings threshold a user must
// reach before a withdrawal can be requested.
const MinWithdrawalEarnings = 500.0

type Withdrawal struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Reference       string             `bson:"reference" json:"reference"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Method          string             `bson:"method" json:"method"`
	Number          string             `bson:"number" json:"number"`
	Amount          float64            `bson:"amount" json:"amount"`
	Status          string             `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	ProcessedAt     *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	RejectionReason string             `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
}

type WithdrawalRequest struct {
	Method        string  `json:"method" validate:"required,oneof=bkash rocket nagad"`
	Number        string  `json:"number" validate:"required"`
	ConfirmNumber string  `json:"confirmNumber" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
}

type ProcessWithdrawalRequest struct {
	WithdrawalID string `json:"withdrawalId" validate:"required"`
	Action       string `json:"action" validate:"required,oneof=approve reject"`
	Reason       string `json:"reason"`
}

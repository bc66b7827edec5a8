package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PayoutRecord is one immutable ledger entry documenting a single
// commission payout. Records are append-only: never updated, never
// deleted. A unique index on (eventId, recipientId, level) makes replayed
// distributions no-ops.
type PayoutRecord struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	EventID     string             `json:"eventId" bson:"eventId"`
	EventType   string             `json:"eventType" bson:"eventType"`
	SourceID    primitive.ObjectID `json:"sourceId" bson:"sourceId"`
	RecipientID primitive.ObjectID `json:"recipientId" bson:"recipientId"`
	Level       int                `json:"level" bson:"level"`
	Amount      float64            `json:"amount" bson:"amount"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// AffiliateSale records one course sale made through an affiliate code and
// the pool commission credited to the affiliate.
type AffiliateSale struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BuyerID     primitive.ObjectID `json:"buyerId" bson:"buyerId"`
	AffiliateID primitive.ObjectID `json:"affiliateId" bson:"affiliateId"`
	CourseID    primitive.ObjectID `json:"courseId" bson:"courseId"`
	Amount      float64            `json:"amount" bson:"amount"`
	Commission  float64            `json:"commission" bson:"commission"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

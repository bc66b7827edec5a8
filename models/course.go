package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Course statuses.
const (
	CourseActive   = "active"
	CourseInactive = "inactive"
)

type Course struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Price       float64            `json:"price" bson:"price"`
	Description string             `json:"description" bson:"description"`
	Status      string             `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type CourseRequest struct {
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Description string  `json:"description"`
}

type UpdateCourseRequest struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

type PurchaseRequest struct {
	CourseID      string `json:"courseId" validate:"required"`
	AffiliateCode string `json:"affiliateCode"`
}

// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User statuses. Only active users receive commissions.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User model. RecruiterID is the direct recruiter back-reference; Uplines
// is the ancestor cache written at signup (closest first, capped at the
// maximum commission depth). Balance and TotalEarned are only ever mutated
// through the commission engine's transactional batch or an approved
// withdrawal.
type User struct {
	ID             primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	Email          string               `json:"email" bson:"email"`
	Password       string               `json:"password,omitempty" bson:"password"`
	FullName       string               `json:"fullName" bson:"fullName"`
	Role           string               `json:"role" bson:"role"`
	Status         string               `json:"status" bson:"status"`
	ReferralCode   string               `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	RecruiterID    *primitive.ObjectID  `json:"recruiterId,omitempty" bson:"recruiterId,omitempty"`
	Uplines        []primitive.ObjectID `json:"uplines,omitempty" bson:"uplines,omitempty"`
	Downline       []primitive.ObjectID `json:"downline,omitempty" bson:"downline,omitempty"`
	DirectRecruits int                  `json:"directRecruits" bson:"directRecruits"`
	Balance        float64              `json:"balance" bson:"balance"`
	TotalEarned    float64              `json:"totalEarned" bson:"totalEarned"`
	RefreshToken   string               `json:"-" bson:"refreshToken,omitempty"`
	CreatedAt      time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// IsActive reports whether the user is eligible to receive commissions.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// SignupRequest is the payload for user registration. ReferralCode is the
// recruiter's code and may be empty for a top-level user.
type SignupRequest struct {
	FullName     string `json:"fullName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	ReferralCode string `json:"referralCode"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// UpdateUserStatusRequest is the admin payload for flipping user flags.
type UpdateUserStatusRequest struct {
	Status *string `json:"status,omitempty"`
	Role   *string `json:"role,omitempty"`
}

// ReferralData is returned to a user asking about their own referral state.
type ReferralData struct {
	ReferralCode   string `json:"referralCode"`
	ReferralLink   string `json:"referralLink"`
	DirectRecruits int    `json:"directRecruits"`
	DownlineCount  int    `json:"downlineCount"`
}

// UserStats aggregates a user's earnings and downline for the dashboard.
type UserStats struct {
	ID             primitive.ObjectID `json:"id" bson:"_id"`
	FullName       string             `json:"fullName" bson:"fullName"`
	Email          string             `json:"email" bson:"email"`
	Balance        float64            `json:"balance" bson:"balance"`
	TotalEarned    float64            `json:"totalEarned" bson:"totalEarned"`
	DirectRecruits int                `json:"directRecruits" bson:"directRecruits"`
	DownlineCount  int                `json:"downlineCount" bson:"downlineCount"`
}

// Response is the uniform JSON envelope for every handler.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

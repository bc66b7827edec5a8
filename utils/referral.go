package utils

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// GenerateReferralCode generates a referral code in the format
// ST-XXXXXXXX where X is 8 random base32 characters.
func GenerateReferralCode() (string, error) {
	// 5 random bytes give us 8 characters in base32
	randomBytes := make([]byte, 5)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = strings.ToUpper(randomStr)
	if len(randomStr) > 8 {
		randomStr = randomStr[:8]
	}
	if len(randomStr) < 8 {
		randomStr = randomStr + strings.Repeat("0", 8-len(randomStr))
	}

	return "ST-" + randomStr, nil
}

// GenerateUniqueReferralCode generates codes until one is free in the
// users collection. Collisions are vanishingly rare at 8 base32 chars,
// but the loop is bounded anyway.
func GenerateUniqueReferralCode(ctx context.Context, users *mongo.Collection) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := GenerateReferralCode()
		if err != nil {
			return "", err
		}
		err = users.FindOne(ctx, bson.M{"referralCode": code}).Err()
		if err == mongo.ErrNoDocuments {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique referral code")
}

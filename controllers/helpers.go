package controllers

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errInsufficientBalance = errors.New("insufficient balance")

func parseObjectID(hex string) (primitive.ObjectID, error) {
	if hex == "" {
		return primitive.NilObjectID, errors.New("empty id")
	}
	return primitive.ObjectIDFromHex(hex)
}

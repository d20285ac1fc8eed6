package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toDecimal128 converts a domain amount for storage. Amounts are kept as
// Decimal128 so $inc stays exact.
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to convert amount %s: %w", d, err)
	}
	return v, nil
}

// fromDecimal128 converts a stored amount back to the domain type.
func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored amount %s: %w", v, err)
	}
	return d, nil
}

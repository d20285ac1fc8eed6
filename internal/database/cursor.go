package database

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// Keyset pagination cursor: the sort-key value and row id of the last item
// on the previous page, encoded opaquely. Unlike an offset it stays correct
// while rows are inserted concurrently.

func encodeCursor(sortValue, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sortValue + "|" + id))
}

func decodeCursor(cursor string) (sortValue, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", errs.Validationf("malformed cursor")
	}
	value, id, found := strings.Cut(string(raw), "|")
	if !found || id == "" {
		return "", "", errs.Validationf("malformed cursor")
	}
	return value, id, nil
}

// cursorSortValue renders the transaction's sort-key value for the cursor.
func cursorSortValue(orderBy string, tx models.Transaction) string {
	if orderBy == models.OrderByAmount {
		return tx.Amount.String()
	}
	return tx.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// afterFilter builds the strictly-greater keyset predicate for a decoded
// cursor, with the row id as tiebreaker for equal sort keys.
func afterFilter(orderBy, sortValue, id string) (bson.M, error) {
	var typed interface{}
	switch orderBy {
	case models.OrderByAmount:
		amount, err := decimal.NewFromString(sortValue)
		if err != nil {
			return nil, errs.Validationf("malformed cursor")
		}
		typed, err = toDecimal128(amount)
		if err != nil {
			return nil, errs.Validationf("malformed cursor")
		}
	case models.OrderByCreatedAt:
		t, err := time.Parse(time.RFC3339Nano, sortValue)
		if err != nil {
			return nil, errs.Validationf("malformed cursor")
		}
		typed = t
	default:
		return nil, errs.Validationf("unsupported order field %q", orderBy)
	}

	return bson.M{"$or": bson.A{
		bson.M{orderBy: bson.M{"$gt": typed}},
		bson.M{orderBy: typed, "_id": bson.M{"$gt": id}},
	}}, nil
}

// normalizeOrderBy validates the requested sort field, defaulting to
// creation time.
func normalizeOrderBy(orderBy string) (string, error) {
	switch orderBy {
	case "":
		return models.OrderByCreatedAt, nil
	case models.OrderByCreatedAt, models.OrderByAmount:
		return orderBy, nil
	default:
		return "", errs.Validationf("unsupported order field %q", orderBy)
	}
}

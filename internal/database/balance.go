package database

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// BalanceStore keeps the single total-balance record per user. Deltas are
// applied with an atomic $inc so concurrent writers cannot lose updates.
type BalanceStore struct {
	coll *mongo.Collection
}

// NewBalanceStore creates the balance store.
func NewBalanceStore(db *DB) *BalanceStore {
	return &BalanceStore{coll: db.db.Collection(collBalances)}
}

type balanceDoc struct {
	UserID       string               `bson:"_id"`
	Balance      primitive.Decimal128 `bson:"balance"`
	CurrencyCode string               `bson:"currencyCode"`
}

// ApplyDelta increments the user's balance record by the signed delta,
// creating the record on first use, and returns the new balance.
func (s *BalanceStore) ApplyDelta(ctx context.Context, userID string, delta decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	defer lockScope(ctx)()

	inc, err := toDecimal128(delta)
	if err != nil {
		return decimal.Zero, errs.DataAccess("encode balance delta", err)
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc balanceDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$inc":         bson.M{"balance": inc},
			"$setOnInsert": bson.M{"currencyCode": currencyCode},
		},
		opts,
	).Decode(&doc)
	if err != nil {
		return decimal.Zero, errs.DataAccess("apply balance delta", err)
	}
	return fromDecimal128(doc.Balance)
}

// Get returns the user's balance record. A user with no recorded
// transactions has a zero balance.
func (s *BalanceStore) Get(ctx context.Context, userID string) (models.BalanceRecord, error) {
	defer lockScope(ctx)()

	var doc balanceDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.BalanceRecord{UserID: userID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return models.BalanceRecord{}, errs.DataAccess("find balance", err)
	}
	balance, err := fromDecimal128(doc.Balance)
	if err != nil {
		return models.BalanceRecord{}, errs.DataAccess("decode balance", err)
	}
	return models.BalanceRecord{UserID: doc.UserID, Balance: balance, CurrencyCode: doc.CurrencyCode}, nil
}

package database

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// StatStore persists one shard of sparse daily counters. The five shards
// (total, category, income source, account, account pair) differ only in
// the dimension fields of their keys, so they share this implementation.
type StatStore struct {
	coll *mongo.Collection
}

// NewTotalStatStore creates the per-day total shard.
func NewTotalStatStore(db *DB) *StatStore {
	return &StatStore{coll: db.db.Collection(collStatsTotal)}
}

// NewCategoryStatStore creates the per-category shard.
func NewCategoryStatStore(db *DB) *StatStore {
	return &StatStore{coll: db.db.Collection(collStatsCategory)}
}

// NewIncomeStatStore creates the per-income-source shard.
func NewIncomeStatStore(db *DB) *StatStore {
	return &StatStore{coll: db.db.Collection(collStatsIncome)}
}

// NewAccountStatStore creates the per-account shard.
func NewAccountStatStore(db *DB) *StatStore {
	return &StatStore{coll: db.db.Collection(collStatsAccount)}
}

// NewAccountPairStatStore creates the transfer account-pair shard.
func NewAccountPairStatStore(db *DB) *StatStore {
	return &StatStore{coll: db.db.Collection(collStatsAccountPair)}
}

type statDoc struct {
	UserID string                          `bson:"userId"`
	Date   time.Time                       `bson:"date"`
	Dims   map[string]string               `bson:"dims,omitempty"`
	Totals map[string]primitive.Decimal128 `bson:"totals"`
}

func statFilter(key models.StatKey) bson.M {
	filter := bson.M{
		"userId": key.UserID,
		"date":   key.Date,
	}
	if len(key.Dims) == 0 {
		filter["dims"] = bson.M{"$exists": false}
		return filter
	}
	// Deterministic order keeps query shapes stable for the planner.
	names := make([]string, 0, len(key.Dims))
	for name := range key.Dims {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		filter["dims."+name] = key.Dims[name]
	}
	return filter
}

// Apply increments one counter by the signed amount as an unconditional
// upsert, creating the sparse document on first touch.
func (s *StatStore) Apply(ctx context.Context, key models.StatKey, tag models.StatTag, amount decimal.Decimal) error {
	defer lockScope(ctx)()

	inc, err := toDecimal128(amount)
	if err != nil {
		return errs.DataAccess("encode stat delta", err)
	}

	update := bson.M{"$inc": bson.M{"totals." + string(tag): inc}}
	if len(key.Dims) > 0 {
		update["$setOnInsert"] = bson.M{"dims": key.Dims}
	}

	_, err = s.coll.UpdateOne(ctx, statFilter(key), update, options.Update().SetUpsert(true))
	if err != nil {
		return errs.DataAccess("apply stat delta", err)
	}
	return nil
}

// Summary returns the user's counters with dates in [from, to], ordered by
// date.
func (s *StatStore) Summary(ctx context.Context, userID string, from, to time.Time) ([]models.StatRow, error) {
	defer lockScope(ctx)()

	filter := bson.M{
		"userId": userID,
		"date":   bson.M{"$gte": from, "$lte": to},
	}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, errs.DataAccess("summarize stats", err)
	}
	defer cursor.Close(ctx)

	var rows []models.StatRow
	for cursor.Next(ctx) {
		var doc statDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errs.DataAccess("decode stat", err)
		}
		totals := make(map[models.StatTag]decimal.Decimal, len(doc.Totals))
		for tag, v := range doc.Totals {
			amount, err := fromDecimal128(v)
			if err != nil {
				return nil, errs.DataAccess("decode stat", err)
			}
			totals[models.StatTag(tag)] = amount
		}
		rows = append(rows, models.StatRow{Date: doc.Date.UTC(), Dims: doc.Dims, Totals: totals})
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.DataAccess("summarize stats", err)
	}
	return rows, nil
}

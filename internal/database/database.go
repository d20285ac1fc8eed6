package database

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	collAccounts      = "accounts"
	collCategories    = "categories"
	collIncomeSources = "income_sources"
	collTransactions  = "transactions"
	collBalances      = "balances"

	collStatsTotal       = "stats_total"
	collStatsCategory    = "stats_category"
	collStatsIncome      = "stats_income"
	collStatsAccount     = "stats_account"
	collStatsAccountPair = "stats_account_pair"
)

// DB wraps the MongoDB connection shared by all stores.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a new database connection
func New(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Successfully connected to MongoDB")
	return &DB{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// Close closes the database connection
func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// UnitOfWork returns the transaction-scope factory bound to this connection.
func (db *DB) UnitOfWork() *UnitOfWork {
	return &UnitOfWork{client: db.client}
}

// EnsureIndexes creates the indexes the stores rely on. Safe to call on
// every startup.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	userDate := mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}}}

	indexes := map[string][]mongo.IndexModel{
		collAccounts: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		collTransactions: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "accountId", Value: 1}}},
		},
		collStatsTotal:       {userDate},
		collStatsCategory:    {userDate},
		collStatsIncome:      {userDate},
		collStatsAccount:     {userDate},
		collStatsAccountPair: {userDate},
	}

	for coll, models := range indexes {
		if _, err := db.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", coll, err)
		}
	}
	return nil
}

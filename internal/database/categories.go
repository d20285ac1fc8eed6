package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// DimensionStore persists a soft-deleted stats dimension: expense
// categories and income sources share the same document shape, so one store
// type serves both collections.
type DimensionStore struct {
	coll     *mongo.Collection
	resource string
}

// NewCategoryStore creates the store for expense categories.
func NewCategoryStore(db *DB) *DimensionStore {
	return &DimensionStore{coll: db.db.Collection(collCategories), resource: "category"}
}

// NewIncomeSourceStore creates the store for income sources.
func NewIncomeSourceStore(db *DB) *DimensionStore {
	return &DimensionStore{coll: db.db.Collection(collIncomeSources), resource: "income source"}
}

type dimensionDoc struct {
	ID         string `bson:"_id"`
	UserID     string `bson:"userId"`
	Name       string `bson:"name"`
	CurrencyID string `bson:"currencyId"`
	IsDeleted  bool   `bson:"isDeleted"`
}

// Insert stores a new dimension.
func (s *DimensionStore) Insert(ctx context.Context, d models.Category) error {
	defer lockScope(ctx)()

	doc := dimensionDoc{ID: d.ID, UserID: d.UserID, Name: d.Name, CurrencyID: d.CurrencyID, IsDeleted: d.IsDeleted}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return errs.DataAccess("insert "+s.resource, err)
	}
	return nil
}

// Get finds one dimension owned by the user, deleted or not.
func (s *DimensionStore) Get(ctx context.Context, userID, id string) (models.Category, error) {
	defer lockScope(ctx)()

	var doc dimensionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Category{}, errs.NotFound(s.resource, id)
	}
	if err != nil {
		return models.Category{}, errs.DataAccess("find "+s.resource, err)
	}
	return models.Category{ID: doc.ID, UserID: doc.UserID, Name: doc.Name, CurrencyID: doc.CurrencyID, IsDeleted: doc.IsDeleted}, nil
}

// List returns the user's live dimensions.
func (s *DimensionStore) List(ctx context.Context, userID string) ([]models.Category, error) {
	defer lockScope(ctx)()

	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID, "isDeleted": false})
	if err != nil {
		return nil, errs.DataAccess("list "+s.resource, err)
	}
	defer cursor.Close(ctx)

	var out []models.Category
	for cursor.Next(ctx) {
		var doc dimensionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errs.DataAccess("decode "+s.resource, err)
		}
		out = append(out, models.Category{ID: doc.ID, UserID: doc.UserID, Name: doc.Name, CurrencyID: doc.CurrencyID, IsDeleted: doc.IsDeleted})
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.DataAccess("list "+s.resource, err)
	}
	return out, nil
}

// SoftDelete marks the dimension deleted without touching history.
func (s *DimensionStore) SoftDelete(ctx context.Context, userID, id string) error {
	defer lockScope(ctx)()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": bson.M{"isDeleted": true}})
	if err != nil {
		return errs.DataAccess("delete "+s.resource, err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound(s.resource, id)
	}
	return nil
}

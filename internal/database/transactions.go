package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// TransactionStore persists transaction rows.
type TransactionStore struct {
	coll *mongo.Collection
}

// NewTransactionStore creates the transaction store.
func NewTransactionStore(db *DB) *TransactionStore {
	return &TransactionStore{coll: db.db.Collection(collTransactions)}
}

type transactionDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"userId"`
	Kind            string               `bson:"kind"`
	AccountID       string               `bson:"accountId"`
	TargetAccountID string               `bson:"targetAccountId,omitempty"`
	CategoryID      string               `bson:"categoryId,omitempty"`
	IncomeID        string               `bson:"incomeId,omitempty"`
	CurrencyID      string               `bson:"currencyId"`
	Amount          primitive.Decimal128 `bson:"amount"`
	Description     string               `bson:"description,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt"`
}

func transactionToDoc(tx models.Transaction) (transactionDoc, error) {
	amount, err := toDecimal128(tx.Amount)
	if err != nil {
		return transactionDoc{}, err
	}
	return transactionDoc{
		ID:              tx.ID,
		UserID:          tx.UserID,
		Kind:            string(tx.Kind),
		AccountID:       tx.AccountID,
		TargetAccountID: tx.TargetAccountID,
		CategoryID:      tx.CategoryID,
		IncomeID:        tx.IncomeID,
		CurrencyID:      tx.CurrencyID,
		Amount:          amount,
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt.UTC(),
	}, nil
}

func transactionFromDoc(doc transactionDoc) (models.Transaction, error) {
	amount, err := fromDecimal128(doc.Amount)
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		ID:              doc.ID,
		UserID:          doc.UserID,
		Kind:            models.TransactionKind(doc.Kind),
		AccountID:       doc.AccountID,
		TargetAccountID: doc.TargetAccountID,
		CategoryID:      doc.CategoryID,
		IncomeID:        doc.IncomeID,
		CurrencyID:      doc.CurrencyID,
		Amount:          amount,
		Description:     doc.Description,
		CreatedAt:       doc.CreatedAt.UTC(),
	}, nil
}

// Insert stores a new transaction row.
func (s *TransactionStore) Insert(ctx context.Context, tx models.Transaction) error {
	defer lockScope(ctx)()

	doc, err := transactionToDoc(tx)
	if err != nil {
		return errs.DataAccess("encode transaction", err)
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return errs.DataAccess("insert transaction", err)
	}
	return nil
}

// Update replaces the transaction row.
func (s *TransactionStore) Update(ctx context.Context, tx models.Transaction) error {
	defer lockScope(ctx)()

	doc, err := transactionToDoc(tx)
	if err != nil {
		return errs.DataAccess("encode transaction", err)
	}
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": tx.ID, "userId": tx.UserID}, doc)
	if err != nil {
		return errs.DataAccess("update transaction", err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("transaction", tx.ID)
	}
	return nil
}

// Delete removes the transaction row.
func (s *TransactionStore) Delete(ctx context.Context, userID, id string) error {
	defer lockScope(ctx)()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return errs.DataAccess("delete transaction", err)
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("transaction", id)
	}
	return nil
}

// Get finds one transaction owned by the user.
func (s *TransactionStore) Get(ctx context.Context, userID, id string) (models.Transaction, error) {
	defer lockScope(ctx)()

	var doc transactionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Transaction{}, errs.NotFound("transaction", id)
	}
	if err != nil {
		return models.Transaction{}, errs.DataAccess("find transaction", err)
	}
	return transactionFromDoc(doc)
}

// List returns one page of the user's transactions matching the query,
// together with the cursor for the next page ("" when exhausted).
func (s *TransactionStore) List(ctx context.Context, userID string, query models.TransactionQuery) ([]models.Transaction, string, error) {
	defer lockScope(ctx)()

	orderBy, err := normalizeOrderBy(query.OrderBy)
	if err != nil {
		return nil, "", err
	}

	filter := bson.M{"userId": userID}
	if query.AccountID != "" {
		filter["$or"] = bson.A{
			bson.M{"accountId": query.AccountID},
			bson.M{"targetAccountId": query.AccountID},
		}
	}
	if query.CategoryID != "" {
		filter["categoryId"] = query.CategoryID
	}
	if query.IncomeID != "" {
		filter["incomeId"] = query.IncomeID
	}

	conditions := bson.A{filter}
	if query.Cursor != "" {
		sortValue, id, err := decodeCursor(query.Cursor)
		if err != nil {
			return nil, "", err
		}
		after, err := afterFilter(orderBy, sortValue, id)
		if err != nil {
			return nil, "", err
		}
		conditions = append(conditions, after)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: orderBy, Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{"$and": conditions}, opts)
	if err != nil {
		return nil, "", errs.DataAccess("list transactions", err)
	}
	defer cursor.Close(ctx)

	var out []models.Transaction
	for cursor.Next(ctx) {
		var doc transactionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, "", errs.DataAccess("decode transaction", err)
		}
		tx, err := transactionFromDoc(doc)
		if err != nil {
			return nil, "", errs.DataAccess("decode transaction", err)
		}
		out = append(out, tx)
	}
	if err := cursor.Err(); err != nil {
		return nil, "", errs.DataAccess("list transactions", err)
	}

	next := ""
	if int64(len(out)) == limit {
		last := out[len(out)-1]
		next = encodeCursor(cursorSortValue(orderBy, last), last.ID)
	}
	return out, next, nil
}

// FindByAccount returns every transaction in which the account participates
// as source or target, used by the account-deletion cascade.
func (s *TransactionStore) FindByAccount(ctx context.Context, userID, accountID string) ([]models.Transaction, error) {
	defer lockScope(ctx)()

	filter := bson.M{
		"userId": userID,
		"$or": bson.A{
			bson.M{"accountId": accountID},
			bson.M{"targetAccountId": accountID},
		},
	}
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, errs.DataAccess("find transactions by account", err)
	}
	defer cursor.Close(ctx)

	var out []models.Transaction
	for cursor.Next(ctx) {
		var doc transactionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errs.DataAccess("decode transaction", err)
		}
		tx, err := transactionFromDoc(doc)
		if err != nil {
			return nil, errs.DataAccess("decode transaction", err)
		}
		out = append(out, tx)
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.DataAccess("find transactions by account", err)
	}
	return out, nil
}

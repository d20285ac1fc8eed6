package database

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// AccountStore persists accounts. All mutating methods participate in the
// unit of work carried by ctx.
type AccountStore struct {
	coll *mongo.Collection
}

// NewAccountStore creates the account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{coll: db.db.Collection(collAccounts)}
}

type accountDoc struct {
	ID         string               `bson:"_id"`
	UserID     string               `bson:"userId"`
	Name       string               `bson:"name"`
	Balance    primitive.Decimal128 `bson:"balance"`
	CurrencyID string               `bson:"currencyId"`
	Status     string               `bson:"status"`
}

func accountToDoc(a models.Account) (accountDoc, error) {
	balance, err := toDecimal128(a.Balance)
	if err != nil {
		return accountDoc{}, err
	}
	return accountDoc{
		ID:         a.ID,
		UserID:     a.UserID,
		Name:       a.Name,
		Balance:    balance,
		CurrencyID: a.CurrencyID,
		Status:     string(a.Status),
	}, nil
}

func accountFromDoc(doc accountDoc) (models.Account, error) {
	balance, err := fromDecimal128(doc.Balance)
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{
		ID:         doc.ID,
		UserID:     doc.UserID,
		Name:       doc.Name,
		Balance:    balance,
		CurrencyID: doc.CurrencyID,
		Status:     models.AccountStatus(doc.Status),
	}, nil
}

// Get finds one account owned by the user.
func (s *AccountStore) Get(ctx context.Context, userID, id string) (models.Account, error) {
	defer lockScope(ctx)()

	var doc accountDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Account{}, errs.NotFound("account", id)
	}
	if err != nil {
		return models.Account{}, errs.DataAccess("find account", err)
	}
	return accountFromDoc(doc)
}

// List returns all accounts owned by the user.
func (s *AccountStore) List(ctx context.Context, userID string) ([]models.Account, error) {
	defer lockScope(ctx)()

	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, errs.DataAccess("list accounts", err)
	}
	defer cursor.Close(ctx)

	var accounts []models.Account
	for cursor.Next(ctx) {
		var doc accountDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errs.DataAccess("decode account", err)
		}
		account, err := accountFromDoc(doc)
		if err != nil {
			return nil, errs.DataAccess("decode account", err)
		}
		accounts = append(accounts, account)
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.DataAccess("list accounts", err)
	}
	return accounts, nil
}

// Create inserts the given accounts.
func (s *AccountStore) Create(ctx context.Context, accounts []models.Account) error {
	defer lockScope(ctx)()

	docs := make([]interface{}, 0, len(accounts))
	for _, a := range accounts {
		doc, err := accountToDoc(a)
		if err != nil {
			return errs.DataAccess("encode account", err)
		}
		docs = append(docs, doc)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errs.DataAccess("insert accounts", err)
	}
	return nil
}

// Patch applies the allow-listed account fields. The balance is not
// reachable from here.
func (s *AccountStore) Patch(ctx context.Context, userID, id string, patch models.AccountPatch) error {
	defer lockScope(ctx)()

	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if len(set) == 0 {
		return nil
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": set})
	if err != nil {
		return errs.DataAccess("patch account", err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("account", id)
	}
	return nil
}

// AdjustBalance applies a signed delta to the account balance as a single
// atomic increment.
func (s *AccountStore) AdjustBalance(ctx context.Context, userID, id string, delta decimal.Decimal) error {
	defer lockScope(ctx)()

	inc, err := toDecimal128(delta)
	if err != nil {
		return errs.DataAccess("encode balance delta", err)
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$inc": bson.M{"balance": inc}},
	)
	if err != nil {
		return errs.DataAccess("adjust account balance", err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("account", id)
	}
	return nil
}

// Delete removes the account document. Whether to hard-delete or disable
// is the caller's policy.
func (s *AccountStore) Delete(ctx context.Context, userID, id string) error {
	defer lockScope(ctx)()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return errs.DataAccess("delete account", err)
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("account", id)
	}
	return nil
}

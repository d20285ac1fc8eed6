// Package ledger provides the account, category and income-source services
// that the transaction processor composes inside its unit of work.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// AccountStore is the persistence surface the account service needs. All
// mutating calls take part in the unit of work carried by ctx.
type AccountStore interface {
	Get(ctx context.Context, userID, id string) (models.Account, error)
	List(ctx context.Context, userID string) ([]models.Account, error)
	Create(ctx context.Context, accounts []models.Account) error
	Patch(ctx context.Context, userID, id string, patch models.AccountPatch) error
	AdjustBalance(ctx context.Context, userID, id string, delta decimal.Decimal) error
	Delete(ctx context.Context, userID, id string) error
}

// AccountService owns account lifecycle and balance adjustments.
type AccountService struct {
	store AccountStore
}

// NewAccountService creates the account service.
func NewAccountService(store AccountStore) *AccountService {
	return &AccountService{store: store}
}

// NewAccountParams describes one account to create.
type NewAccountParams struct {
	Name       string
	CurrencyID string
	Balance    decimal.Decimal
}

// Get returns one of the user's accounts.
func (s *AccountService) Get(ctx context.Context, userID, id string) (models.Account, error) {
	return s.store.Get(ctx, userID, id)
}

// List returns all of the user's accounts.
func (s *AccountService) List(ctx context.Context, userID string) ([]models.Account, error) {
	return s.store.List(ctx, userID)
}

// CreateAccounts creates one or more enabled accounts and returns them.
func (s *AccountService) CreateAccounts(ctx context.Context, userID string, params []NewAccountParams) ([]models.Account, error) {
	if len(params) == 0 {
		return nil, errs.Validationf("no accounts to create")
	}
	accounts := make([]models.Account, 0, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, errs.Validationf("account name is required")
		}
		if p.CurrencyID == "" {
			return nil, errs.Validationf("account currency is required")
		}
		accounts = append(accounts, models.Account{
			ID:         uuid.NewString(),
			UserID:     userID,
			Name:       p.Name,
			Balance:    p.Balance,
			CurrencyID: p.CurrencyID,
			Status:     models.AccountEnabled,
		})
	}
	if err := s.store.Create(ctx, accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Patch updates the allow-listed account fields.
func (s *AccountService) Patch(ctx context.Context, userID, id string, patch models.AccountPatch) error {
	return s.store.Patch(ctx, userID, id, patch)
}

// AdjustBalance applies a signed delta to the account's own-currency
// balance. Only the transaction processor calls this.
func (s *AccountService) AdjustBalance(ctx context.Context, userID, id string, delta decimal.Decimal) error {
	return s.store.AdjustBalance(ctx, userID, id, delta)
}

// Disable marks the account unusable while keeping its history resolvable.
func (s *AccountService) Disable(ctx context.Context, userID, id string) error {
	status := models.AccountDisabled
	return s.store.Patch(ctx, userID, id, models.AccountPatch{Status: &status})
}

// Delete removes the account document outright. Callers choose this only
// for accounts without history; otherwise they Disable.
func (s *AccountService) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userID, id)
}

// RequireEnabled loads an account and rejects missing or disabled ones.
func (s *AccountService) RequireEnabled(ctx context.Context, userID, id string) (models.Account, error) {
	if id == "" {
		return models.Account{}, errs.Validationf("account id is required")
	}
	account, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return models.Account{}, err
	}
	if account.Status != models.AccountEnabled {
		return models.Account{}, errs.Validationf("account %q is disabled", id)
	}
	return account, nil
}

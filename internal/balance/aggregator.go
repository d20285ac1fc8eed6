// Package balance maintains the single denormalized total-balance record
// per user, in the user's home currency.
package balance

import (
	"context"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/models"
	"finance-ledger/internal/rates"
)

// Store applies signed deltas to the balance record as atomic increments,
// so concurrent scopes cannot lose updates.
type Store interface {
	ApplyDelta(ctx context.Context, userID string, delta decimal.Decimal, currencyCode string) (decimal.Decimal, error)
	Get(ctx context.Context, userID string) (models.BalanceRecord, error)
}

// Aggregator converts signed transaction contributions into the home
// currency and applies them to the balance record.
//
// Conversion uses the rate at mutation time, not the rate at the original
// transaction time. Reversals therefore restore the record exactly only
// while the rate table is stable; this approximation is accepted.
type Aggregator struct {
	store        Store
	rates        rates.Provider
	homeCurrency string
}

// NewAggregator creates the aggregator.
func NewAggregator(store Store, provider rates.Provider, homeCurrency string) *Aggregator {
	return &Aggregator{store: store, rates: provider, homeCurrency: homeCurrency}
}

// Apply converts the signed amount from currencyCode to the home currency
// and increments the user's balance record. Returns the new balance.
func (a *Aggregator) Apply(ctx context.Context, userID string, amount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	rate, err := a.rates.Rate(ctx, currencyCode, a.homeCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	return a.store.ApplyDelta(ctx, userID, amount.Mul(rate), a.homeCurrency)
}

// Balance returns the user's current balance record.
func (a *Aggregator) Balance(ctx context.Context, userID string) (models.BalanceRecord, error) {
	return a.store.Get(ctx, userID)
}

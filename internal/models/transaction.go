package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind discriminates the three transaction shapes.
type TransactionKind string

const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

// Valid reports whether k is one of the three known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer:
		return true
	}
	return false
}

// Transaction represents one financial transaction. Amount is always a
// positive magnitude; the direction of every balance and stat effect is
// derived from Kind and the role an account plays in it.
type Transaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Kind            TransactionKind `json:"kind"`
	AccountID       string          `json:"accountId"`
	TargetAccountID string          `json:"targetAccountId,omitempty"` // transfers only
	CategoryID      string          `json:"categoryId,omitempty"`      // expenses only
	IncomeID        string          `json:"incomeId,omitempty"`        // incomes only
	CurrencyID      string          `json:"currencyId"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// TransactionPatch carries the mutable subset of a transaction. Nil fields
// are left unchanged.
type TransactionPatch struct {
	Amount          *decimal.Decimal
	AccountID       *string
	TargetAccountID *string
	CategoryID      *string
	IncomeID        *string
	CreatedAt       *time.Time
	Description     *string
}

// ApplyTo merges the patch into a copy of tx and returns it.
func (p TransactionPatch) ApplyTo(tx Transaction) Transaction {
	if p.Amount != nil {
		tx.Amount = p.Amount.Abs()
	}
	if p.AccountID != nil {
		tx.AccountID = *p.AccountID
	}
	if p.TargetAccountID != nil {
		tx.TargetAccountID = *p.TargetAccountID
	}
	if p.CategoryID != nil {
		tx.CategoryID = *p.CategoryID
	}
	if p.IncomeID != nil {
		tx.IncomeID = *p.IncomeID
	}
	if p.CreatedAt != nil {
		tx.CreatedAt = p.CreatedAt.UTC()
	}
	if p.Description != nil {
		tx.Description = *p.Description
	}
	return tx
}

// EffectChanged reports whether the patched transaction differs from tx in
// any field that contributes to balances or stat shards. A patch that only
// edits the description does not count.
func (p TransactionPatch) EffectChanged(tx Transaction) bool {
	after := p.ApplyTo(tx)
	return !after.Amount.Equal(tx.Amount) ||
		!after.CreatedAt.Equal(tx.CreatedAt) ||
		after.AccountID != tx.AccountID ||
		after.TargetAccountID != tx.TargetAccountID ||
		after.CategoryID != tx.CategoryID ||
		after.IncomeID != tx.IncomeID
}

package models

import "github.com/shopspring/decimal"

// AccountStatus marks an account as usable or retired. Accounts with
// transaction history are disabled rather than hard-deleted.
type AccountStatus string

const (
	AccountEnabled  AccountStatus = "enabled"
	AccountDisabled AccountStatus = "disabled"
)

// Account holds a balance in its own currency. The balance is mutated only
// through the transaction processor so that every change has a matching
// transaction row.
type Account struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
	CurrencyID string          `json:"currencyId"`
	Status     AccountStatus   `json:"status"`
}

// AccountPatch carries the caller-editable account fields. Balance is
// deliberately absent.
type AccountPatch struct {
	Name   *string
	Status *AccountStatus
}

// BalanceRecord is the single denormalized total balance per user, kept in
// the user's home currency. It equals the sum of all live transactions'
// signed, converted contributions.
type BalanceRecord struct {
	UserID       string          `json:"userId"`
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currencyCode"`
}

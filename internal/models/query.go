package models

// Sort fields accepted by transaction listing.
const (
	OrderByCreatedAt = "createdAt"
	OrderByAmount    = "amount"
)

// TransactionQuery describes one page of a transaction listing. Cursor is
// the opaque keyset cursor returned by the previous page; empty means start
// from the beginning.
type TransactionQuery struct {
	AccountID  string
	CategoryID string
	IncomeID   string
	OrderBy    string
	Cursor     string
	Limit      int64
}

package models

// Category is a stats dimension: an expense category or an income source,
// which share this shape and live in separate collections. Soft-deleted so
// historical stats keep resolving.
type Category struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	CurrencyID string `json:"currencyId"`
	IsDeleted  bool   `json:"isDeleted"`
}

package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatTag names one counter inside a daily stat document. Expense totals
// are stored as positive magnitudes; direction is carried by the tag.
type StatTag string

const (
	TagIncome      StatTag = "income"
	TagExpense     StatTag = "expense"
	TagTransfer    StatTag = "transfer"
	TagTransferIn  StatTag = "transfer_in"
	TagTransferOut StatTag = "transfer_out"
)

// Dimension field names shared by the stat shards.
const (
	DimCategory      = "categoryId"
	DimIncomeSource  = "incomeId"
	DimAccount       = "accountId"
	DimTargetAccount = "targetAccountId"
)

// StatKey addresses one sparse daily counter document: a user, a UTC day
// and the shard's dimension fields (empty for the total shard).
type StatKey struct {
	UserID string
	Date   time.Time
	Dims   map[string]string
}

// Equal reports whether two keys address the same counter document.
func (k StatKey) Equal(other StatKey) bool {
	if k.UserID != other.UserID || !k.Date.Equal(other.Date) || len(k.Dims) != len(other.Dims) {
		return false
	}
	for name, v := range k.Dims {
		if other.Dims[name] != v {
			return false
		}
	}
	return true
}

// String renders a canonical form of the key, usable as a map key.
func (k StatKey) String() string {
	parts := make([]string, 0, len(k.Dims))
	for name, v := range k.Dims {
		parts = append(parts, name+"="+v)
	}
	sort.Strings(parts)
	return k.UserID + "|" + k.Date.Format("2006-01-02") + "|" + strings.Join(parts, ",")
}

// StatRow is one decoded daily counter, as returned by shard summaries.
type StatRow struct {
	Date   time.Time
	Dims   map[string]string
	Totals map[StatTag]decimal.Decimal
}

// Total returns the counter for tag, zero if absent.
func (r StatRow) Total(tag StatTag) decimal.Decimal {
	return r.Totals[tag]
}

package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// shard identifies one of the five stat-shard stores.
type shard int

const (
	shardTotal shard = iota
	shardCategory
	shardIncome
	shardAccount
	shardPair
)

// write is one pending counter increment: which shard, which document,
// which tag, and the signed amount.
type write struct {
	shard  shard
	key    models.StatKey
	tag    models.StatTag
	amount decimal.Decimal
}

func (w write) equal(other write) bool {
	return w.shard == other.shard &&
		w.tag == other.tag &&
		w.key.Equal(other.key) &&
		w.amount.Equal(other.amount)
}

func (w write) negated() write {
	w.amount = w.amount.Neg()
	return w
}

// Command is the tagged per-kind stat command. Each kind produces its own
// fixed set of shard writes, so the orchestrator never dispatches on a kind
// field; only the three variants below implement the interface.
type Command interface {
	kind() models.TransactionKind
	writes() []write
}

// Income touches the total, income-source and account shards.
type Income struct {
	UserID    string
	Date      time.Time
	AccountID string
	IncomeID  string
	Amount    decimal.Decimal
}

func (c Income) kind() models.TransactionKind { return models.KindIncome }

func (c Income) writes() []write {
	day := models.Day(c.Date)
	return []write{
		{shardTotal, models.StatKey{UserID: c.UserID, Date: day}, models.TagIncome, c.Amount},
		{shardIncome, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{models.DimIncomeSource: c.IncomeID}}, models.TagIncome, c.Amount},
		{shardAccount, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{models.DimAccount: c.AccountID}}, models.TagIncome, c.Amount},
	}
}

// Expense touches the total, category and account shards. Amounts are
// magnitudes; the expense direction lives in the tag.
type Expense struct {
	UserID     string
	Date       time.Time
	AccountID  string
	CategoryID string
	Amount     decimal.Decimal
}

func (c Expense) kind() models.TransactionKind { return models.KindExpense }

func (c Expense) writes() []write {
	day := models.Day(c.Date)
	return []write{
		{shardTotal, models.StatKey{UserID: c.UserID, Date: day}, models.TagExpense, c.Amount},
		{shardCategory, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{models.DimCategory: c.CategoryID}}, models.TagExpense, c.Amount},
		{shardAccount, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{models.DimAccount: c.AccountID}}, models.TagExpense, c.Amount},
	}
}

// Transfer touches the total and account-pair shards, and the account shard
// twice: outflow on the source, inflow on the target.
type Transfer struct {
	UserID          string
	Date            time.Time
	AccountID       string
	TargetAccountID string
	Amount          decimal.Decimal
}

func (c Transfer) kind() models.TransactionKind { return models.KindTransfer }

func (c Transfer) writes() []write {
	day := models.Day(c.Date)
	return []write{
		{shardTotal, models.StatKey{UserID: c.UserID, Date: day}, models.TagTransfer, c.Amount},
		{shardPair, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{
			models.DimAccount:       c.AccountID,
			models.DimTargetAccount: c.TargetAccountID,
		}}, models.TagTransfer, c.Amount},
		{shardAccount, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{models.DimAccount: c.AccountID}}, models.TagTransferOut, c.Amount},
		{shardAccount, models.StatKey{UserID: c.UserID, Date: day, Dims: map[string]string{models.DimAccount: c.TargetAccountID}}, models.TagTransferIn, c.Amount},
	}
}

// CommandFor builds the stat command matching a transaction row.
func CommandFor(tx models.Transaction) (Command, error) {
	switch tx.Kind {
	case models.KindIncome:
		return Income{UserID: tx.UserID, Date: tx.CreatedAt, AccountID: tx.AccountID, IncomeID: tx.IncomeID, Amount: tx.Amount}, nil
	case models.KindExpense:
		return Expense{UserID: tx.UserID, Date: tx.CreatedAt, AccountID: tx.AccountID, CategoryID: tx.CategoryID, Amount: tx.Amount}, nil
	case models.KindTransfer:
		return Transfer{UserID: tx.UserID, Date: tx.CreatedAt, AccountID: tx.AccountID, TargetAccountID: tx.TargetAccountID, Amount: tx.Amount}, nil
	}
	return nil, errs.Validationf("unsupported transaction kind %q", tx.Kind)
}

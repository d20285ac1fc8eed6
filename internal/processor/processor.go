// Package processor drives the transaction lifecycle: it validates
// accounts, applies signed balance deltas, fires the stat shard updates and
// persists the row, all inside one unit of work.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-ledger/internal/balance"
	"finance-ledger/internal/errs"
	"finance-ledger/internal/ledger"
	"finance-ledger/internal/logger"
	"finance-ledger/internal/models"
	"finance-ledger/internal/stats"
)

// UnitOfWork scopes a group of store operations to one atomic
// commit/rollback boundary.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionStore persists transaction rows.
type TransactionStore interface {
	Insert(ctx context.Context, tx models.Transaction) error
	Update(ctx context.Context, tx models.Transaction) error
	Delete(ctx context.Context, userID, id string) error
	Get(ctx context.Context, userID, id string) (models.Transaction, error)
	List(ctx context.Context, userID string, query models.TransactionQuery) ([]models.Transaction, string, error)
	FindByAccount(ctx context.Context, userID, accountID string) ([]models.Transaction, error)
}

// Processor is the transaction state machine. Every mutation either fully
// applies or fully fails; no step may leave a partial effect.
type Processor struct {
	uow        UnitOfWork
	store      TransactionStore
	accounts   *ledger.AccountService
	categories *ledger.DimensionService
	incomes    *ledger.DimensionService
	balance    *balance.Aggregator
	stats      *stats.Orchestrator
}

// New wires the processor's collaborators.
func New(
	uow UnitOfWork,
	store TransactionStore,
	accounts *ledger.AccountService,
	categories *ledger.DimensionService,
	incomes *ledger.DimensionService,
	aggregator *balance.Aggregator,
	orchestrator *stats.Orchestrator,
) *Processor {
	return &Processor{
		uow:        uow,
		store:      store,
		accounts:   accounts,
		categories: categories,
		incomes:    incomes,
		balance:    aggregator,
		stats:      orchestrator,
	}
}

// CreateCommand describes a transaction to create. Amount may be signed;
// only its magnitude is stored. A zero CreatedAt means now.
type CreateCommand struct {
	UserID          string
	Kind            models.TransactionKind
	AccountID       string
	TargetAccountID string
	CategoryID      string
	IncomeID        string
	CurrencyID      string
	Amount          decimal.Decimal
	Description     string
	CreatedAt       time.Time
}

// Create validates the command, applies its full effect and persists the
// row, all in one unit of work.
func (p *Processor) Create(ctx context.Context, cmd CreateCommand) (models.Transaction, error) {
	if !cmd.Kind.Valid() {
		return models.Transaction{}, errs.Validationf("unsupported transaction kind %q", cmd.Kind)
	}
	amount := cmd.Amount.Abs()
	if amount.IsZero() {
		return models.Transaction{}, errs.Validationf("amount must be non-zero")
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx := models.Transaction{
		ID:              uuid.NewString(),
		UserID:          cmd.UserID,
		Kind:            cmd.Kind,
		AccountID:       cmd.AccountID,
		TargetAccountID: cmd.TargetAccountID,
		CategoryID:      cmd.CategoryID,
		IncomeID:        cmd.IncomeID,
		CurrencyID:      cmd.CurrencyID,
		Amount:          amount,
		Description:     cmd.Description,
		CreatedAt:       createdAt.UTC(),
	}

	err := p.uow.Run(ctx, func(ctx context.Context) error {
		if err := p.validate(ctx, &tx); err != nil {
			return err
		}
		if err := p.applyDeltas(ctx, tx, false); err != nil {
			return err
		}
		statCmd, err := stats.CommandFor(tx)
		if err != nil {
			return err
		}
		if err := p.stats.Create(ctx, statCmd); err != nil {
			return err
		}
		return p.store.Insert(ctx, tx)
	})
	if err != nil {
		return models.Transaction{}, err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("transactionId", tx.ID).
		Str("kind", string(tx.Kind)).
		Msg("transaction created")
	return tx, nil
}

// Patch merges the mutable fields into the stored transaction. When any
// effect-bearing field changed, the old contribution is reversed and the
// new one applied as two delta operations riding the same unit of work; a
// patch of identical values writes no balance or shard updates at all.
func (p *Processor) Patch(ctx context.Context, userID, id string, patch models.TransactionPatch) (models.Transaction, error) {
	var after models.Transaction
	err := p.uow.Run(ctx, func(ctx context.Context) error {
		before, err := p.store.Get(ctx, userID, id)
		if err != nil {
			return err
		}

		after = patch.ApplyTo(before)
		if after.Amount.IsZero() {
			return errs.Validationf("amount must be non-zero")
		}

		if !patch.EffectChanged(before) {
			// Description-only edit: nothing to reverse.
			return p.store.Update(ctx, after)
		}

		if err := p.validate(ctx, &after); err != nil {
			return err
		}
		if err := p.applyDeltas(ctx, before, true); err != nil {
			return err
		}
		if err := p.applyDeltas(ctx, after, false); err != nil {
			return err
		}

		beforeCmd, err := stats.CommandFor(before)
		if err != nil {
			return err
		}
		afterCmd, err := stats.CommandFor(after)
		if err != nil {
			return err
		}
		if err := p.stats.Patch(ctx, beforeCmd, afterCmd); err != nil {
			return err
		}
		return p.store.Update(ctx, after)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return after, nil
}

// Delete reverses the transaction's full contribution and removes the row.
func (p *Processor) Delete(ctx context.Context, userID, id string) error {
	return p.uow.Run(ctx, func(ctx context.Context) error {
		tx, err := p.store.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := p.reverse(ctx, tx); err != nil {
			return err
		}
		return p.store.Delete(ctx, userID, id)
	})
}

// Get returns one transaction.
func (p *Processor) Get(ctx context.Context, userID, id string) (models.Transaction, error) {
	return p.store.Get(ctx, userID, id)
}

// List returns one page of transactions and the cursor for the next page.
func (p *Processor) List(ctx context.Context, userID string, query models.TransactionQuery) ([]models.Transaction, string, error) {
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 100 {
		query.Limit = 100
	}
	return p.store.List(ctx, userID, query)
}

// DeleteAccount cascades: every transaction the account participates in is
// reversed and removed, then the account itself is disabled (if it had
// history) or hard-deleted (if it never did).
func (p *Processor) DeleteAccount(ctx context.Context, userID, accountID string) error {
	return p.uow.Run(ctx, func(ctx context.Context) error {
		if _, err := p.accounts.Get(ctx, userID, accountID); err != nil {
			return err
		}
		txs, err := p.store.FindByAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			if err := p.reverse(ctx, tx); err != nil {
				return err
			}
			if err := p.store.Delete(ctx, userID, tx.ID); err != nil {
				return err
			}
		}
		if len(txs) > 0 {
			return p.accounts.Disable(ctx, userID, accountID)
		}
		return p.accounts.Delete(ctx, userID, accountID)
	})
}

// validate checks account ownership and kind-specific references, fills in
// the currency from the source account when absent, and clears fields that
// do not belong to the kind.
func (p *Processor) validate(ctx context.Context, tx *models.Transaction) error {
	account, err := p.accounts.RequireEnabled(ctx, tx.UserID, tx.AccountID)
	if err != nil {
		return err
	}
	if tx.CurrencyID == "" {
		tx.CurrencyID = account.CurrencyID
	}

	switch tx.Kind {
	case models.KindIncome:
		if tx.IncomeID == "" {
			return errs.Validationf("income source is required")
		}
		if _, err := p.incomes.Require(ctx, tx.UserID, tx.IncomeID); err != nil {
			return err
		}
		tx.CategoryID, tx.TargetAccountID = "", ""
	case models.KindExpense:
		if tx.CategoryID == "" {
			return errs.Validationf("category is required")
		}
		if _, err := p.categories.Require(ctx, tx.UserID, tx.CategoryID); err != nil {
			return err
		}
		tx.IncomeID, tx.TargetAccountID = "", ""
	case models.KindTransfer:
		if tx.TargetAccountID == "" {
			return errs.Validationf("transfer target account is required")
		}
		if tx.TargetAccountID == tx.AccountID {
			return errs.Validationf("transfer target must differ from the source account")
		}
		if _, err := p.accounts.RequireEnabled(ctx, tx.UserID, tx.TargetAccountID); err != nil {
			return err
		}
		tx.CategoryID, tx.IncomeID = "", ""
	}
	return nil
}

// applyDeltas applies (or, with reverse, undoes) the transaction's account
// and total-balance effects. Expense contributions carry an explicit
// negative sign toward both balances; transfers never touch the total
// balance record.
func (p *Processor) applyDeltas(ctx context.Context, tx models.Transaction, reverse bool) error {
	amount := tx.Amount
	if reverse {
		amount = amount.Neg()
	}

	switch tx.Kind {
	case models.KindIncome:
		if err := p.accounts.AdjustBalance(ctx, tx.UserID, tx.AccountID, amount); err != nil {
			return err
		}
		_, err := p.balance.Apply(ctx, tx.UserID, amount, tx.CurrencyID)
		return err
	case models.KindExpense:
		if err := p.accounts.AdjustBalance(ctx, tx.UserID, tx.AccountID, amount.Neg()); err != nil {
			return err
		}
		_, err := p.balance.Apply(ctx, tx.UserID, amount.Neg(), tx.CurrencyID)
		return err
	case models.KindTransfer:
		if err := p.accounts.AdjustBalance(ctx, tx.UserID, tx.AccountID, amount.Neg()); err != nil {
			return err
		}
		return p.accounts.AdjustBalance(ctx, tx.UserID, tx.TargetAccountID, amount)
	}
	return errs.Validationf("unsupported transaction kind %q", tx.Kind)
}

// reverse undoes the transaction's full contribution: balances and shards.
func (p *Processor) reverse(ctx context.Context, tx models.Transaction) error {
	if err := p.applyDeltas(ctx, tx, true); err != nil {
		return err
	}
	statCmd, err := stats.CommandFor(tx)
	if err != nil {
		return err
	}
	return p.stats.Delete(ctx, statCmd)
}

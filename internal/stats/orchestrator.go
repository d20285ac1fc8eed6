// Package stats keeps the daily aggregated statistics shards consistent
// with the transaction lifecycle.
package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// Store is one shard's persistence surface. Apply must be an atomic
// upsert-increment and must be safe to call from concurrent goroutines
// sharing one unit-of-work scope.
type Store interface {
	Apply(ctx context.Context, key models.StatKey, tag models.StatTag, amount decimal.Decimal) error
	Summary(ctx context.Context, userID string, from, to time.Time) ([]models.StatRow, error)
}

// Orchestrator translates transaction lifecycle events into shard updates.
// Every command is all-or-nothing: the shard writes run concurrently inside
// the caller's unit of work, and the first failure aborts the whole scope.
type Orchestrator struct {
	total    Store
	category Store
	income   Store
	account  Store
	pair     Store
}

// NewOrchestrator wires the five shard stores.
func NewOrchestrator(total, category, income, account, pair Store) *Orchestrator {
	return &Orchestrator{total: total, category: category, income: income, account: account, pair: pair}
}

// Create applies the command's full contribution.
func (o *Orchestrator) Create(ctx context.Context, cmd Command) error {
	return o.fanOut(ctx, cmd.writes())
}

// Delete reverses the command's full contribution.
func (o *Orchestrator) Delete(ctx context.Context, cmd Command) error {
	ws := cmd.writes()
	for i := range ws {
		ws[i] = ws[i].negated()
	}
	return o.fanOut(ctx, ws)
}

// Patch moves the contribution from before to after. Shards whose key, tag
// and amount are unchanged are not written at all; changed ones get a
// subtract of the old value and an add of the new, which handles dimension
// changes uniformly.
func (o *Orchestrator) Patch(ctx context.Context, before, after Command) error {
	if before.kind() != after.kind() {
		return errs.Validationf("transaction kind cannot change from %q to %q", before.kind(), after.kind())
	}

	// Same kind implies the same write layout, so positions pair up.
	bw, aw := before.writes(), after.writes()
	var ws []write
	for i := range bw {
		if bw[i].equal(aw[i]) {
			continue
		}
		ws = append(ws, bw[i].negated(), aw[i])
	}
	return o.fanOut(ctx, ws)
}

// fanOut runs the writes concurrently and returns the first failure, if
// any. The enclosing unit of work turns that failure into a rollback, so a
// partially applied command is never visible outside the scope.
func (o *Orchestrator) fanOut(ctx context.Context, ws []write) error {
	if len(ws) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range ws {
		w := w
		g.Go(func() error {
			return o.storeFor(w.shard).Apply(ctx, w.key, w.tag, w.amount)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) storeFor(s shard) Store {
	switch s {
	case shardCategory:
		return o.category
	case shardIncome:
		return o.income
	case shardAccount:
		return o.account
	case shardPair:
		return o.pair
	default:
		return o.total
	}
}

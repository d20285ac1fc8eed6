package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/models"
)

// statApplier mirrors the shard-store surface without importing the stats
// package, so its in-package tests can use these wrappers.
type statApplier interface {
	Apply(ctx context.Context, key models.StatKey, tag models.StatTag, amount decimal.Decimal) error
	Summary(ctx context.Context, userID string, from, to time.Time) ([]models.StatRow, error)
}

// FailingStatStore rejects every write, for fault-injection tests.
type FailingStatStore struct {
	Inner statApplier
	Err   error
}

// NewFailingStatStore wraps inner so every Apply fails with err.
func NewFailingStatStore(inner *MemStatStore, err error) *FailingStatStore {
	return &FailingStatStore{Inner: inner, Err: err}
}

func (s *FailingStatStore) Apply(context.Context, models.StatKey, models.StatTag, decimal.Decimal) error {
	return s.Err
}

func (s *FailingStatStore) Summary(ctx context.Context, userID string, from, to time.Time) ([]models.StatRow, error) {
	return s.Inner.Summary(ctx, userID, from, to)
}

// CountingStatStore counts the writes passing through it, for no-op
// detection tests.
type CountingStatStore struct {
	Inner statApplier

	mu      sync.Mutex
	applies int
}

// NewCountingStatStore wraps inner with a write counter.
func NewCountingStatStore(inner *MemStatStore) *CountingStatStore {
	return &CountingStatStore{Inner: inner}
}

func (s *CountingStatStore) Apply(ctx context.Context, key models.StatKey, tag models.StatTag, amount decimal.Decimal) error {
	s.mu.Lock()
	s.applies++
	s.mu.Unlock()
	return s.Inner.Apply(ctx, key, tag, amount)
}

func (s *CountingStatStore) Summary(ctx context.Context, userID string, from, to time.Time) ([]models.StatRow, error) {
	return s.Inner.Summary(ctx, userID, from, to)
}

// Applies reports how many writes were attempted.
func (s *CountingStatStore) Applies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies
}

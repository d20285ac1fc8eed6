package database

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	"finance-ledger/internal/errs"
)

// UnitOfWork binds a group of store operations to one MongoDB session so
// they commit or roll back together. Stores pick the session up from the
// context; nothing outside the session observes partial state.
type UnitOfWork struct {
	client *mongo.Client
}

type scopeLockKey struct{}

// Run executes fn inside a single multi-document transaction. Any error
// from fn aborts the transaction and is returned unchanged.
func (u *UnitOfWork) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := u.client.StartSession()
	if err != nil {
		return errs.DataAccess("start session", err)
	}
	defer session.EndSession(ctx)

	// A session is not safe for concurrent use, but the stats orchestrator
	// fans out shard writes within one scope. Writes in the same scope
	// serialize on this lock.
	var mu sync.Mutex

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(context.WithValue(sc, scopeLockKey{}, &mu))
	})
	return err
}

// lockScope acquires the scope lock when ctx carries one and returns the
// release function. Outside a unit of work it is a no-op.
func lockScope(ctx context.Context) func() {
	if mu, ok := ctx.Value(scopeLockKey{}).(*sync.Mutex); ok {
		mu.Lock()
		return mu.Unlock
	}
	return func() {}
}

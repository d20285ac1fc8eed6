// Package testutil provides in-memory store implementations with
// snapshot-based rollback, standing in for MongoDB in service tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// Shard names used to address the in-memory stat stores.
const (
	ShardTotal       = "total"
	ShardCategory    = "category"
	ShardIncome      = "income"
	ShardAccount     = "account"
	ShardAccountPair = "account_pair"
)

type statEntry struct {
	key    models.StatKey
	totals map[models.StatTag]decimal.Decimal
}

// MemDB holds every in-memory collection behind one lock, so the stat
// orchestrator's concurrent writes stay safe.
type MemDB struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	categories   map[string]models.Category
	incomes      map[string]models.Category
	transactions map[string]models.Transaction
	balances     map[string]models.BalanceRecord
	stats        map[string]map[string]statEntry
}

// NewMemDB creates an empty in-memory database.
func NewMemDB() *MemDB {
	return &MemDB{
		accounts:     make(map[string]models.Account),
		categories:   make(map[string]models.Category),
		incomes:      make(map[string]models.Category),
		transactions: make(map[string]models.Transaction),
		balances:     make(map[string]models.BalanceRecord),
		stats: map[string]map[string]statEntry{
			ShardTotal:       {},
			ShardCategory:    {},
			ShardIncome:      {},
			ShardAccount:     {},
			ShardAccountPair: {},
		},
	}
}

type memSnapshot struct {
	accounts     map[string]models.Account
	categories   map[string]models.Category
	incomes      map[string]models.Category
	transactions map[string]models.Transaction
	balances     map[string]models.BalanceRecord
	stats        map[string]map[string]statEntry
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStats(stats map[string]map[string]statEntry) map[string]map[string]statEntry {
	out := make(map[string]map[string]statEntry, len(stats))
	for shard, entries := range stats {
		copied := make(map[string]statEntry, len(entries))
		for k, e := range entries {
			totals := make(map[models.StatTag]decimal.Decimal, len(e.totals))
			for tag, v := range e.totals {
				totals[tag] = v
			}
			copied[k] = statEntry{key: e.key, totals: totals}
		}
		out[shard] = copied
	}
	return out
}

func (db *MemDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		accounts:     copyMap(db.accounts),
		categories:   copyMap(db.categories),
		incomes:      copyMap(db.incomes),
		transactions: copyMap(db.transactions),
		balances:     copyMap(db.balances),
		stats:        copyStats(db.stats),
	}
}

func (db *MemDB) restore(snap memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.accounts = snap.accounts
	db.categories = snap.categories
	db.incomes = snap.incomes
	db.transactions = snap.transactions
	db.balances = snap.balances
	db.stats = snap.stats
}

// UnitOfWork returns a unit of work that rolls the whole database back to
// its pre-scope state when fn fails.
func (db *MemDB) UnitOfWork() *MemUnitOfWork {
	return &MemUnitOfWork{db: db}
}

// MemUnitOfWork implements the processor's UnitOfWork over MemDB.
type MemUnitOfWork struct {
	db *MemDB
}

// Run executes fn, restoring the snapshot taken at entry when fn errors.
func (u *MemUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := u.db.snapshot()
	if err := fn(ctx); err != nil {
		u.db.restore(snap)
		return err
	}
	return nil
}

// ---- accounts ----

// MemAccountStore implements ledger.AccountStore.
type MemAccountStore struct {
	db *MemDB
}

// Accounts returns the account store.
func (db *MemDB) Accounts() *MemAccountStore { return &MemAccountStore{db: db} }

func (s *MemAccountStore) Get(_ context.Context, userID, id string) (models.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[id]
	if !ok || account.UserID != userID {
		return models.Account{}, errs.NotFound("account", id)
	}
	return account, nil
}

func (s *MemAccountStore) List(_ context.Context, userID string) ([]models.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Account
	for _, a := range s.db.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemAccountStore) Create(_ context.Context, accounts []models.Account) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range accounts {
		s.db.accounts[a.ID] = a
	}
	return nil
}

func (s *MemAccountStore) Patch(_ context.Context, userID, id string, patch models.AccountPatch) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[id]
	if !ok || account.UserID != userID {
		return errs.NotFound("account", id)
	}
	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.Status != nil {
		account.Status = *patch.Status
	}
	s.db.accounts[id] = account
	return nil
}

func (s *MemAccountStore) AdjustBalance(_ context.Context, userID, id string, delta decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[id]
	if !ok || account.UserID != userID {
		return errs.NotFound("account", id)
	}
	account.Balance = account.Balance.Add(delta)
	s.db.accounts[id] = account
	return nil
}

func (s *MemAccountStore) Delete(_ context.Context, userID, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[id]
	if !ok || account.UserID != userID {
		return errs.NotFound("account", id)
	}
	delete(s.db.accounts, id)
	return nil
}

// ---- dimensions ----

// MemDimensionStore implements ledger.DimensionStore over one of the two
// dimension collections.
type MemDimensionStore struct {
	db       *MemDB
	income   bool
	resource string
}

// Categories returns the expense-category store.
func (db *MemDB) Categories() *MemDimensionStore {
	return &MemDimensionStore{db: db, resource: "category"}
}

// IncomeSources returns the income-source store.
func (db *MemDB) IncomeSources() *MemDimensionStore {
	return &MemDimensionStore{db: db, income: true, resource: "income source"}
}

func (s *MemDimensionStore) coll() map[string]models.Category {
	if s.income {
		return s.db.incomes
	}
	return s.db.categories
}

func (s *MemDimensionStore) Insert(_ context.Context, d models.Category) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.coll()[d.ID] = d
	return nil
}

func (s *MemDimensionStore) Get(_ context.Context, userID, id string) (models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	d, ok := s.coll()[id]
	if !ok || d.UserID != userID {
		return models.Category{}, errs.NotFound(s.resource, id)
	}
	return d, nil
}

func (s *MemDimensionStore) List(_ context.Context, userID string) ([]models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Category
	for _, d := range s.coll() {
		if d.UserID == userID && !d.IsDeleted {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemDimensionStore) SoftDelete(_ context.Context, userID, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	d, ok := s.coll()[id]
	if !ok || d.UserID != userID {
		return errs.NotFound(s.resource, id)
	}
	d.IsDeleted = true
	s.coll()[id] = d
	return nil
}

// ---- transactions ----

// MemTransactionStore implements processor.TransactionStore, including the
// keyset-paginated listing.
type MemTransactionStore struct {
	db *MemDB
}

// Transactions returns the transaction store.
func (db *MemDB) Transactions() *MemTransactionStore { return &MemTransactionStore{db: db} }

func (s *MemTransactionStore) Insert(_ context.Context, tx models.Transaction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.transactions[tx.ID] = tx
	return nil
}

func (s *MemTransactionStore) Update(_ context.Context, tx models.Transaction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	existing, ok := s.db.transactions[tx.ID]
	if !ok || existing.UserID != tx.UserID {
		return errs.NotFound("transaction", tx.ID)
	}
	s.db.transactions[tx.ID] = tx
	return nil
}

func (s *MemTransactionStore) Delete(_ context.Context, userID, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	tx, ok := s.db.transactions[id]
	if !ok || tx.UserID != userID {
		return errs.NotFound("transaction", id)
	}
	delete(s.db.transactions, id)
	return nil
}

func (s *MemTransactionStore) Get(_ context.Context, userID, id string) (models.Transaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	tx, ok := s.db.transactions[id]
	if !ok || tx.UserID != userID {
		return models.Transaction{}, errs.NotFound("transaction", id)
	}
	return tx, nil
}

func sortValue(orderBy string, tx models.Transaction) string {
	if orderBy == models.OrderByAmount {
		// Fixed-width so lexical order matches numeric order in tests.
		return tx.Amount.StringFixed(8)
	}
	return tx.CreatedAt.UTC().Format(time.RFC3339Nano)
}

func (s *MemTransactionStore) List(_ context.Context, userID string, query models.TransactionQuery) ([]models.Transaction, string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = models.OrderByCreatedAt
	}

	var matched []models.Transaction
	for _, tx := range s.db.transactions {
		if tx.UserID != userID {
			continue
		}
		if query.AccountID != "" && tx.AccountID != query.AccountID && tx.TargetAccountID != query.AccountID {
			continue
		}
		if query.CategoryID != "" && tx.CategoryID != query.CategoryID {
			continue
		}
		if query.IncomeID != "" && tx.IncomeID != query.IncomeID {
			continue
		}
		matched = append(matched, tx)
	}

	sort.Slice(matched, func(i, j int) bool {
		vi, vj := sortValue(orderBy, matched[i]), sortValue(orderBy, matched[j])
		if vi != vj {
			return vi < vj
		}
		return matched[i].ID < matched[j].ID
	})

	if query.Cursor != "" {
		value, id, found := strings.Cut(query.Cursor, "|")
		if !found {
			return nil, "", errs.Validationf("malformed cursor")
		}
		i := sort.Search(len(matched), func(i int) bool {
			vi := sortValue(orderBy, matched[i])
			return vi > value || (vi == value && matched[i].ID > id)
		})
		matched = matched[i:]
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}

	next := ""
	if int64(len(matched)) == limit {
		last := matched[len(matched)-1]
		next = sortValue(orderBy, last) + "|" + last.ID
	}
	return matched, next, nil
}

func (s *MemTransactionStore) FindByAccount(_ context.Context, userID, accountID string) ([]models.Transaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.db.transactions {
		if tx.UserID == userID && (tx.AccountID == accountID || tx.TargetAccountID == accountID) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- balances ----

// MemBalanceStore implements balance.Store.
type MemBalanceStore struct {
	db *MemDB
}

// Balances returns the balance store.
func (db *MemDB) Balances() *MemBalanceStore { return &MemBalanceStore{db: db} }

func (s *MemBalanceStore) ApplyDelta(_ context.Context, userID string, delta decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.balances[userID]
	if !ok {
		record = models.BalanceRecord{UserID: userID, CurrencyCode: currencyCode}
	}
	record.Balance = record.Balance.Add(delta)
	s.db.balances[userID] = record
	return record.Balance, nil
}

func (s *MemBalanceStore) Get(_ context.Context, userID string) (models.BalanceRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.balances[userID]
	if !ok {
		return models.BalanceRecord{UserID: userID, Balance: decimal.Zero}, nil
	}
	return record, nil
}

// ---- stat shards ----

// MemStatStore implements stats.Store for one shard.
type MemStatStore struct {
	db    *MemDB
	shard string
}

// Stats returns the store for the named shard.
func (db *MemDB) Stats(shard string) *MemStatStore { return &MemStatStore{db: db, shard: shard} }

func (s *MemStatStore) Apply(_ context.Context, key models.StatKey, tag models.StatTag, amount decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	entries := s.db.stats[s.shard]
	entry, ok := entries[key.String()]
	if !ok {
		entry = statEntry{key: key, totals: make(map[models.StatTag]decimal.Decimal)}
	}
	entry.totals[tag] = entry.totals[tag].Add(amount)
	entries[key.String()] = entry
	return nil
}

func (s *MemStatStore) Summary(_ context.Context, userID string, from, to time.Time) ([]models.StatRow, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []models.StatRow
	for _, entry := range s.db.stats[s.shard] {
		if entry.key.UserID != userID || entry.key.Date.Before(from) || entry.key.Date.After(to) {
			continue
		}
		totals := make(map[models.StatTag]decimal.Decimal, len(entry.totals))
		for tag, v := range entry.totals {
			totals[tag] = v
		}
		rows = append(rows, models.StatRow{Date: entry.key.Date, Dims: entry.key.Dims, Totals: totals})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

// Total reads one counter directly, for assertions.
func (s *MemStatStore) Total(key models.StatKey, tag models.StatTag) decimal.Decimal {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.stats[s.shard][key.String()].totals[tag]
}

// Len reports how many counter documents the shard holds.
func (s *MemStatStore) Len() int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return len(s.db.stats[s.shard])
}

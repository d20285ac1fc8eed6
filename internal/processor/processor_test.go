package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-ledger/internal/balance"
	"finance-ledger/internal/errs"
	"finance-ledger/internal/ledger"
	"finance-ledger/internal/models"
	"finance-ledger/internal/rates"
	"finance-ledger/internal/stats"
	"finance-ledger/internal/testutil"
)

const user = "user-1"

var shardNames = []string{
	testutil.ShardTotal,
	testutil.ShardCategory,
	testutil.ShardIncome,
	testutil.ShardAccount,
	testutil.ShardAccountPair,
}

type env struct {
	ctx        context.Context
	db         *testutil.MemDB
	counting   map[string]*testutil.CountingStatStore
	proc       *Processor
	accounts   *ledger.AccountService
	categories *ledger.DimensionService
	incomes    *ledger.DimensionService
	aggregator *balance.Aggregator
}

// newEnv builds the full service stack over in-memory stores. The rate
// table makes 1 EUR worth 2 USD; USD is the home currency.
func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

func newEnvWith(t *testing.T, overrides map[string]stats.Store) *env {
	t.Helper()

	db := testutil.NewMemDB()
	counting := make(map[string]*testutil.CountingStatStore)
	shardStore := func(name string) stats.Store {
		if s, ok := overrides[name]; ok {
			return s
		}
		c := testutil.NewCountingStatStore(db.Stats(name))
		counting[name] = c
		return c
	}

	table, err := rates.ParseTable("USD=1,EUR=2")
	require.NoError(t, err)

	accounts := ledger.NewAccountService(db.Accounts())
	categories := ledger.NewDimensionService(db.Categories())
	incomes := ledger.NewDimensionService(db.IncomeSources())
	aggregator := balance.NewAggregator(db.Balances(), rates.NewFixedProvider(table), "USD")
	orchestrator := stats.NewOrchestrator(
		shardStore(testutil.ShardTotal),
		shardStore(testutil.ShardCategory),
		shardStore(testutil.ShardIncome),
		shardStore(testutil.ShardAccount),
		shardStore(testutil.ShardAccountPair),
	)

	return &env{
		ctx:        context.Background(),
		db:         db,
		counting:   counting,
		proc:       New(db.UnitOfWork(), db.Transactions(), accounts, categories, incomes, aggregator, orchestrator),
		accounts:   accounts,
		categories: categories,
		incomes:    incomes,
		aggregator: aggregator,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *env) newAccount(t *testing.T, name, currency, balance string) models.Account {
	t.Helper()
	created, err := e.accounts.CreateAccounts(e.ctx, user, []ledger.NewAccountParams{
		{Name: name, CurrencyID: currency, Balance: dec(balance)},
	})
	require.NoError(t, err)
	return created[0]
}

func (e *env) newCategory(t *testing.T, name string) models.Category {
	t.Helper()
	c, err := e.categories.Create(e.ctx, user, name, "USD")
	require.NoError(t, err)
	return c
}

func (e *env) newIncomeSource(t *testing.T, name string) models.Category {
	t.Helper()
	c, err := e.incomes.Create(e.ctx, user, name, "USD")
	require.NoError(t, err)
	return c
}

func (e *env) accountBalance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := e.accounts.Get(e.ctx, user, id)
	require.NoError(t, err)
	return account.Balance
}

func (e *env) totalBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	record, err := e.aggregator.Balance(e.ctx, user)
	require.NoError(t, err)
	return record.Balance
}

func (e *env) shardTotal(shard string, key models.StatKey, tag models.StatTag) decimal.Decimal {
	return e.db.Stats(shard).Total(key, tag)
}

func (e *env) applies() int {
	total := 0
	for _, c := range e.counting {
		total += c.Applies()
	}
	return total
}

func totalKey(date time.Time) models.StatKey {
	return models.StatKey{UserID: user, Date: date}
}

func dimKey(date time.Time, dims map[string]string) models.StatKey {
	return models.StatKey{UserID: user, Date: date, Dims: dims}
}

func TestCreateExpense_AppliesAllEffects(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "500")
	category := e.newCategory(t, "Groceries")
	date := day(2025, time.January, 1)

	tx, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:     user,
		Kind:       models.KindExpense,
		AccountID:  account.ID,
		CategoryID: category.ID,
		Amount:     dec("100"),
		CreatedAt:  date,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", tx.CurrencyID, "currency defaults to the source account")

	assert.True(t, e.accountBalance(t, account.ID).Equal(dec("400")))
	assert.True(t, e.totalBalance(t).Equal(dec("-100")))

	catKey := dimKey(date, map[string]string{models.DimCategory: category.ID})
	acctKey := dimKey(date, map[string]string{models.DimAccount: account.ID})
	assert.True(t, e.shardTotal(testutil.ShardCategory, catKey, models.TagExpense).Equal(dec("100")))
	assert.True(t, e.shardTotal(testutil.ShardTotal, totalKey(date), models.TagExpense).Equal(dec("100")))
	assert.True(t, e.shardTotal(testutil.ShardAccount, acctKey, models.TagExpense).Equal(dec("100")))
}

func TestCreateIncome_ConvertsToHomeCurrency(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Savings", "EUR", "0")
	source := e.newIncomeSource(t, "Salary")
	date := day(2025, time.February, 10)

	_, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:    user,
		Kind:      models.KindIncome,
		AccountID: account.ID,
		IncomeID:  source.ID,
		Amount:    dec("50"),
		CreatedAt: date,
	})
	require.NoError(t, err)

	// The account keeps its own currency; the total balance is in USD.
	assert.True(t, e.accountBalance(t, account.ID).Equal(dec("50")))
	assert.True(t, e.totalBalance(t).Equal(dec("100")))

	incomeKey := dimKey(date, map[string]string{models.DimIncomeSource: source.ID})
	assert.True(t, e.shardTotal(testutil.ShardIncome, incomeKey, models.TagIncome).Equal(dec("50")))
}

func TestExpenseSignConvention(t *testing.T) {
	// Expenses must subtract from both the account and the total balance
	// even though the stored amount is a positive magnitude.
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	category := e.newCategory(t, "Rent")

	_, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:     user,
		Kind:       models.KindExpense,
		AccountID:  account.ID,
		CategoryID: category.ID,
		Amount:     dec("-100"), // signed input; magnitude is stored
	})
	require.NoError(t, err)

	assert.True(t, e.accountBalance(t, account.ID).Equal(dec("-100")))
	assert.True(t, e.totalBalance(t).Equal(dec("-100")))
}

func TestCreateTransfer_ThenDelete_RestoresEverything(t *testing.T) {
	e := newEnv(t)
	a := e.newAccount(t, "A", "USD", "200")
	b := e.newAccount(t, "B", "USD", "10")
	date := day(2025, time.March, 3)

	tx, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:          user,
		Kind:            models.KindTransfer,
		AccountID:       a.ID,
		TargetAccountID: b.ID,
		Amount:          dec("50"),
		CreatedAt:       date,
	})
	require.NoError(t, err)

	assert.True(t, e.accountBalance(t, a.ID).Equal(dec("150")))
	assert.True(t, e.accountBalance(t, b.ID).Equal(dec("60")))
	// Transfers move money between own accounts; the total balance record
	// must not change.
	assert.True(t, e.totalBalance(t).IsZero())

	pairKey := dimKey(date, map[string]string{
		models.DimAccount:       a.ID,
		models.DimTargetAccount: b.ID,
	})
	assert.True(t, e.shardTotal(testutil.ShardAccountPair, pairKey, models.TagTransfer).Equal(dec("50")))

	require.NoError(t, e.proc.Delete(e.ctx, user, tx.ID))

	assert.True(t, e.accountBalance(t, a.ID).Equal(dec("200")))
	assert.True(t, e.accountBalance(t, b.ID).Equal(dec("10")))
	assert.True(t, e.shardTotal(testutil.ShardAccountPair, pairKey, models.TagTransfer).IsZero())
	assert.True(t, e.shardTotal(testutil.ShardTotal, totalKey(date), models.TagTransfer).IsZero())

	srcKey := dimKey(date, map[string]string{models.DimAccount: a.ID})
	dstKey := dimKey(date, map[string]string{models.DimAccount: b.ID})
	assert.True(t, e.shardTotal(testutil.ShardAccount, srcKey, models.TagTransferOut).IsZero())
	assert.True(t, e.shardTotal(testutil.ShardAccount, dstKey, models.TagTransferIn).IsZero())

	_, err = e.proc.Get(e.ctx, user, tx.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestPatchIncomeAmount_AppliesNetDelta(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	source := e.newIncomeSource(t, "Salary")
	date := day(2025, time.April, 1)

	tx, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:    user,
		Kind:      models.KindIncome,
		AccountID: account.ID,
		IncomeID:  source.ID,
		Amount:    dec("100"),
		CreatedAt: date,
	})
	require.NoError(t, err)

	newAmount := dec("40")
	_, err = e.proc.Patch(e.ctx, user, tx.ID, models.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)

	assert.True(t, e.totalBalance(t).Equal(dec("40")), "net -60 against the created +100")
	assert.True(t, e.accountBalance(t, account.ID).Equal(dec("40")))

	incomeKey := dimKey(date, map[string]string{models.DimIncomeSource: source.ID})
	assert.True(t, e.shardTotal(testutil.ShardIncome, incomeKey, models.TagIncome).Equal(dec("40")))
}

func TestPatchMovesContributionAcrossDimensions(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	groceries := e.newCategory(t, "Groceries")
	dining := e.newCategory(t, "Dining Out")
	date := day(2025, time.May, 5)

	tx, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:     user,
		Kind:       models.KindExpense,
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Amount:     dec("30"),
		CreatedAt:  date,
	})
	require.NoError(t, err)

	_, err = e.proc.Patch(e.ctx, user, tx.ID, models.TransactionPatch{CategoryID: &dining.ID})
	require.NoError(t, err)

	oldKey := dimKey(date, map[string]string{models.DimCategory: groceries.ID})
	newKey := dimKey(date, map[string]string{models.DimCategory: dining.ID})
	assert.True(t, e.shardTotal(testutil.ShardCategory, oldKey, models.TagExpense).IsZero())
	assert.True(t, e.shardTotal(testutil.ShardCategory, newKey, models.TagExpense).Equal(dec("30")))
	// The total shard was unaffected by a pure dimension move.
	assert.True(t, e.shardTotal(testutil.ShardTotal, totalKey(date), models.TagExpense).Equal(dec("30")))
	assert.True(t, e.accountBalance(t, account.ID).Equal(dec("-30")))
}

func TestPatchIdenticalValues_WritesNoShards(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	category := e.newCategory(t, "Groceries")

	amount := dec("25")
	tx, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:     user,
		Kind:       models.KindExpense,
		AccountID:  account.ID,
		CategoryID: category.ID,
		Amount:     amount,
		CreatedAt:  day(2025, time.June, 6),
	})
	require.NoError(t, err)

	before := e.applies()
	_, err = e.proc.Patch(e.ctx, user, tx.ID, models.TransactionPatch{
		Amount:     &amount,
		AccountID:  &account.ID,
		CategoryID: &category.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, before, e.applies(), "identical patch must not touch any shard")

	description := "weekly shop"
	_, err = e.proc.Patch(e.ctx, user, tx.ID, models.TransactionPatch{Description: &description})
	require.NoError(t, err)
	assert.Equal(t, before, e.applies(), "description edits must not touch any shard")

	got, err := e.proc.Get(e.ctx, user, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekly shop", got.Description)
}

func TestShardFailure_RollsBackWholeOperation(t *testing.T) {
	boom := errors.New("category shard down")
	e := newEnvWith(t, map[string]stats.Store{
		testutil.ShardCategory: testutil.NewFailingStatStore(nil, boom),
	})
	account := e.newAccount(t, "Checking", "USD", "500")
	category := e.newCategory(t, "Groceries")
	date := day(2025, time.July, 7)

	_, err := e.proc.Create(e.ctx, CreateCommand{
		UserID:     user,
		Kind:       models.KindExpense,
		AccountID:  account.ID,
		CategoryID: category.ID,
		Amount:     dec("100"),
		CreatedAt:  date,
	})
	require.ErrorIs(t, err, boom, "the cause must propagate unchanged")

	// Nothing from the failed scope may remain visible.
	assert.True(t, e.accountBalance(t, account.ID).Equal(dec("500")))
	assert.True(t, e.totalBalance(t).IsZero())
	assert.True(t, e.shardTotal(testutil.ShardTotal, totalKey(date), models.TagExpense).IsZero())
	assert.Equal(t, 0, e.db.Stats(testutil.ShardTotal).Len())
	assert.Equal(t, 0, e.db.Stats(testutil.ShardAccount).Len())

	txs, _, err := e.proc.List(e.ctx, user, models.TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	category := e.newCategory(t, "Groceries")
	disabled := e.newAccount(t, "Old", "USD", "0")
	require.NoError(t, e.accounts.Disable(e.ctx, user, disabled.ID))

	cases := []struct {
		name     string
		cmd      CreateCommand
		notFound bool
	}{
		{
			name:     "missing account",
			cmd:      CreateCommand{UserID: user, Kind: models.KindExpense, AccountID: "nope", CategoryID: category.ID, Amount: dec("1")},
			notFound: true,
		},
		{
			name: "disabled account",
			cmd:  CreateCommand{UserID: user, Kind: models.KindExpense, AccountID: disabled.ID, CategoryID: category.ID, Amount: dec("1")},
		},
		{
			name: "transfer without target",
			cmd:  CreateCommand{UserID: user, Kind: models.KindTransfer, AccountID: account.ID, Amount: dec("1")},
		},
		{
			name: "transfer to itself",
			cmd:  CreateCommand{UserID: user, Kind: models.KindTransfer, AccountID: account.ID, TargetAccountID: account.ID, Amount: dec("1")},
		},
		{
			name: "unknown kind",
			cmd:  CreateCommand{UserID: user, Kind: "loan", AccountID: account.ID, Amount: dec("1")},
		},
		{
			name: "zero amount",
			cmd:  CreateCommand{UserID: user, Kind: models.KindExpense, AccountID: account.ID, CategoryID: category.ID, Amount: dec("0")},
		},
		{
			name: "expense without category",
			cmd:  CreateCommand{UserID: user, Kind: models.KindExpense, AccountID: account.ID, Amount: dec("1")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.proc.Create(e.ctx, tc.cmd)
			require.Error(t, err)
			if tc.notFound {
				assert.True(t, errs.IsNotFound(err))
			} else {
				assert.True(t, errs.IsValidation(err))
			}
		})
	}

	// A failed create must leave no trace.
	assert.True(t, e.accountBalance(t, account.ID).IsZero())
	assert.True(t, e.totalBalance(t).IsZero())
}

func TestBalanceMatchesLiveContributions(t *testing.T) {
	e := newEnv(t)
	usd := e.newAccount(t, "USD", "USD", "0")
	eur := e.newAccount(t, "EUR", "EUR", "0")
	category := e.newCategory(t, "Stuff")
	source := e.newIncomeSource(t, "Job")

	// The invariant: the balance record equals the signed, converted sum
	// of all live transactions, at every observation point.
	expected := func(txs []models.Transaction) decimal.Decimal {
		sum := decimal.Zero
		for _, tx := range txs {
			converted := tx.Amount
			if tx.CurrencyID == "EUR" {
				converted = converted.Mul(dec("2"))
			}
			switch tx.Kind {
			case models.KindIncome:
				sum = sum.Add(converted)
			case models.KindExpense:
				sum = sum.Sub(converted)
			}
		}
		return sum
	}

	check := func() {
		t.Helper()
		txs, _, err := e.proc.List(e.ctx, user, models.TransactionQuery{Limit: 100})
		require.NoError(t, err)
		assert.True(t, e.totalBalance(t).Equal(expected(txs)))
	}

	income, err := e.proc.Create(e.ctx, CreateCommand{
		UserID: user, Kind: models.KindIncome, AccountID: eur.ID, IncomeID: source.ID, Amount: dec("100"),
	})
	require.NoError(t, err)
	check()

	expense, err := e.proc.Create(e.ctx, CreateCommand{
		UserID: user, Kind: models.KindExpense, AccountID: usd.ID, CategoryID: category.ID, Amount: dec("37.50"),
	})
	require.NoError(t, err)
	check()

	_, err = e.proc.Create(e.ctx, CreateCommand{
		UserID: user, Kind: models.KindTransfer, AccountID: eur.ID, TargetAccountID: usd.ID, Amount: dec("10"),
	})
	require.NoError(t, err)
	check()

	smaller := dec("20")
	_, err = e.proc.Patch(e.ctx, user, income.ID, models.TransactionPatch{Amount: &smaller})
	require.NoError(t, err)
	check()

	require.NoError(t, e.proc.Delete(e.ctx, user, expense.ID))
	check()
}

func TestTotalShardEqualsCategorySum(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	groceries := e.newCategory(t, "Groceries")
	dining := e.newCategory(t, "Dining Out")
	date := day(2025, time.August, 8)

	for _, c := range []struct {
		category string
		amount   string
	}{
		{groceries.ID, "12.30"},
		{dining.ID, "45"},
		{groceries.ID, "7.70"},
	} {
		_, err := e.proc.Create(e.ctx, CreateCommand{
			UserID: user, Kind: models.KindExpense, AccountID: account.ID,
			CategoryID: c.category, Amount: dec(c.amount), CreatedAt: date,
		})
		require.NoError(t, err)
	}

	categorySum := e.shardTotal(testutil.ShardCategory, dimKey(date, map[string]string{models.DimCategory: groceries.ID}), models.TagExpense).
		Add(e.shardTotal(testutil.ShardCategory, dimKey(date, map[string]string{models.DimCategory: dining.ID}), models.TagExpense))
	total := e.shardTotal(testutil.ShardTotal, totalKey(date), models.TagExpense)
	assert.True(t, total.Equal(categorySum))
	assert.True(t, total.Equal(dec("65")))
}

func TestListPaginatesWithoutGapsOrDuplicates(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Checking", "USD", "0")
	source := e.newIncomeSource(t, "Job")

	base := day(2025, time.September, 1)
	want := make(map[string]bool, 27)
	for i := 0; i < 27; i++ {
		tx, err := e.proc.Create(e.ctx, CreateCommand{
			UserID:    user,
			Kind:      models.KindIncome,
			AccountID: account.ID,
			IncomeID:  source.ID,
			Amount:    dec("1"),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		want[tx.ID] = true
	}

	seen := make(map[string]bool)
	query := models.TransactionQuery{Limit: 10, OrderBy: models.OrderByCreatedAt}
	pages := 0
	for {
		page, next, err := e.proc.List(e.ctx, user, query)
		require.NoError(t, err)
		pages++
		for _, tx := range page {
			assert.False(t, seen[tx.ID], "duplicate %s", tx.ID)
			seen[tx.ID] = true
		}
		if next == "" {
			break
		}
		query.Cursor = next
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, want, seen, "union of pages must equal the full set")
}

func TestDeleteAccount_CascadesAndDisables(t *testing.T) {
	e := newEnv(t)
	a := e.newAccount(t, "A", "USD", "100")
	b := e.newAccount(t, "B", "USD", "100")
	category := e.newCategory(t, "Stuff")
	date := day(2025, time.October, 10)

	_, err := e.proc.Create(e.ctx, CreateCommand{
		UserID: user, Kind: models.KindTransfer, AccountID: a.ID, TargetAccountID: b.ID,
		Amount: dec("40"), CreatedAt: date,
	})
	require.NoError(t, err)
	_, err = e.proc.Create(e.ctx, CreateCommand{
		UserID: user, Kind: models.KindExpense, AccountID: a.ID, CategoryID: category.ID,
		Amount: dec("15"), CreatedAt: date,
	})
	require.NoError(t, err)

	require.NoError(t, e.proc.DeleteAccount(e.ctx, user, a.ID))

	// Both transactions were reversed and removed; B is back where it
	// started and A survives disabled.
	txs, _, err := e.proc.List(e.ctx, user, models.TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.True(t, e.accountBalance(t, b.ID).Equal(dec("100")))
	assert.True(t, e.accountBalance(t, a.ID).Equal(dec("100")))
	assert.True(t, e.totalBalance(t).IsZero())

	got, err := e.accounts.Get(e.ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountDisabled, got.Status)
}

func TestDeleteAccount_HardDeletesWithoutHistory(t *testing.T) {
	e := newEnv(t)
	account := e.newAccount(t, "Empty", "USD", "0")

	require.NoError(t, e.proc.DeleteAccount(e.ctx, user, account.ID))

	_, err := e.accounts.Get(e.ctx, user, account.ID)
	assert.True(t, errs.IsNotFound(err))
}

package stats

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// Period selects the bucketing of a summary.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// PeriodSummary is one bucket of aggregated totals. Period is the day
// ("2025-01-31") or month ("2025-01") label in UTC.
type PeriodSummary struct {
	Period   string
	Income   decimal.Decimal
	Expense  decimal.Decimal
	Transfer decimal.Decimal
}

// DimensionTotal is one dimension's aggregate over a range.
type DimensionTotal struct {
	DimensionID string
	Amount      decimal.Decimal
}

// Summary aggregates the total shard over [from, to], bucketed by period,
// in chronological order.
func (o *Orchestrator) Summary(ctx context.Context, userID string, from, to time.Time, period Period) ([]PeriodSummary, error) {
	var layout string
	switch period {
	case PeriodDay:
		layout = "2006-01-02"
	case PeriodMonth:
		layout = "2006-01"
	default:
		return nil, errs.Validationf("unsupported period %q", period)
	}

	rows, err := o.total.Summary(ctx, userID, models.Day(from), models.Day(to))
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*PeriodSummary)
	for _, row := range rows {
		label := row.Date.Format(layout)
		b, ok := buckets[label]
		if !ok {
			b = &PeriodSummary{Period: label}
			buckets[label] = b
		}
		b.Income = b.Income.Add(row.Total(models.TagIncome))
		b.Expense = b.Expense.Add(row.Total(models.TagExpense))
		b.Transfer = b.Transfer.Add(row.Total(models.TagTransfer))
	}

	out := make([]PeriodSummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// CategoryBreakdown aggregates expense totals per category over [from, to],
// largest first.
func (o *Orchestrator) CategoryBreakdown(ctx context.Context, userID string, from, to time.Time) ([]DimensionTotal, error) {
	return o.breakdown(ctx, o.category, userID, from, to, models.DimCategory, models.TagExpense)
}

// IncomeBreakdown aggregates income totals per income source over
// [from, to], largest first.
func (o *Orchestrator) IncomeBreakdown(ctx context.Context, userID string, from, to time.Time) ([]DimensionTotal, error) {
	return o.breakdown(ctx, o.income, userID, from, to, models.DimIncomeSource, models.TagIncome)
}

func (o *Orchestrator) breakdown(ctx context.Context, store Store, userID string, from, to time.Time, dim string, tag models.StatTag) ([]DimensionTotal, error) {
	rows, err := store.Summary(ctx, userID, models.Day(from), models.Day(to))
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, row := range rows {
		id := row.Dims[dim]
		totals[id] = totals[id].Add(row.Total(tag))
	}

	out := make([]DimensionTotal, 0, len(totals))
	for id, amount := range totals {
		out = append(out, DimensionTotal{DimensionID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].DimensionID < out[j].DimensionID
	})
	return out, nil
}

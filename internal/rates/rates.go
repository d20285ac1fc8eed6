// Package rates provides currency conversion for the balance aggregator.
// Rate lookup is treated as a pure function; the fixed provider here is the
// default implementation, backed by a table from configuration.
package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/errs"
)

// Provider converts between currencies. Rate returns how many units of
// target one unit of base is worth.
type Provider interface {
	Rate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

// FixedProvider resolves rates from a static table mapping each currency
// code to its value in a common reference unit.
type FixedProvider struct {
	table map[string]decimal.Decimal
}

// NewFixedProvider creates a provider over the given table.
func NewFixedProvider(table map[string]decimal.Decimal) *FixedProvider {
	return &FixedProvider{table: table}
}

// ParseTable parses a "USD=1,EUR=1.08" style rate table.
func ParseTable(s string) (map[string]decimal.Decimal, error) {
	table := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid rate entry %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %q: %w", code, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("rate for %q must be positive", code)
		}
		table[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return table, nil
}

// Rate implements Provider. Unknown currencies yield a not-found error.
func (p *FixedProvider) Rate(_ context.Context, base, target string) (decimal.Decimal, error) {
	base = strings.ToUpper(base)
	target = strings.ToUpper(target)
	if base == target {
		return decimal.NewFromInt(1), nil
	}
	baseValue, ok := p.table[base]
	if !ok {
		return decimal.Zero, errs.NotFound("currency rate", base)
	}
	targetValue, ok := p.table[target]
	if !ok {
		return decimal.Zero, errs.NotFound("currency rate", target)
	}
	return baseValue.Div(targetValue), nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Day truncates t to its UTC calendar day. All stat shards are keyed by the
// value this returns.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatAmount renders an amount the way it crosses the service boundary:
// a decimal string rounded to two places.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// FormatDate renders a date the way it crosses the service boundary.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Package digest posts a monthly financial summary to a Telegram chat,
// with a CSV report attached.
package digest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"finance-ledger/internal/balance"
	"finance-ledger/internal/ledger"
	"finance-ledger/internal/models"
	"finance-ledger/internal/processor"
	"finance-ledger/internal/stats"
)

// Digest renders and delivers the monthly summary.
type Digest struct {
	processor  *processor.Processor
	stats      *stats.Orchestrator
	balance    *balance.Aggregator
	categories *ledger.DimensionService
	bot        *tgbotapi.BotAPI
	chatID     int64
	userID     string
}

// New creates a digest sender for one user and chat.
func New(
	proc *processor.Processor,
	orchestrator *stats.Orchestrator,
	aggregator *balance.Aggregator,
	categories *ledger.DimensionService,
	bot *tgbotapi.BotAPI,
	chatID int64,
	userID string,
) *Digest {
	return &Digest{
		processor:  proc,
		stats:      orchestrator,
		balance:    aggregator,
		categories: categories,
		bot:        bot,
		chatID:     chatID,
		userID:     userID,
	}
}

// CategoryLine is one rendered category row.
type CategoryLine struct {
	Name    string
	Amount  decimal.Decimal
	Percent decimal.Decimal
}

// Report is the assembled digest content for one month.
type Report struct {
	From         time.Time
	To           time.Time
	Balance      models.BalanceRecord
	Summary      []stats.PeriodSummary
	Categories   []CategoryLine
	Transactions []models.Transaction
}

// SendMonthly builds last month's report and posts it with its CSV export.
func (d *Digest) SendMonthly(ctx context.Context) error {
	now := time.Now().UTC()
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := firstOfThisMonth.AddDate(0, -1, 0)
	to := firstOfThisMonth.AddDate(0, 0, -1)

	report, err := d.BuildReport(ctx, from, to)
	if err != nil {
		return fmt.Errorf("building digest report: %w", err)
	}

	msg := tgbotapi.NewMessage(d.chatID, report.Text())
	msg.ParseMode = "Markdown"
	if _, err := d.bot.Send(msg); err != nil {
		return fmt.Errorf("sending digest message: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, report); err != nil {
		return fmt.Errorf("rendering digest csv: %w", err)
	}
	doc := tgbotapi.NewDocument(d.chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("ledger-%s.csv", from.Format("2006-01")),
		Bytes: buf.Bytes(),
	})
	if _, err := d.bot.Send(doc); err != nil {
		return fmt.Errorf("sending digest csv: %w", err)
	}
	return nil
}

// BuildReport assembles balance, monthly summary, category breakdown and
// the period's transactions.
func (d *Digest) BuildReport(ctx context.Context, from, to time.Time) (Report, error) {
	report := Report{From: from, To: to}

	record, err := d.balance.Balance(ctx, d.userID)
	if err != nil {
		return Report{}, err
	}
	report.Balance = record

	summary, err := d.stats.Summary(ctx, d.userID, from, to, stats.PeriodMonth)
	if err != nil {
		return Report{}, err
	}
	report.Summary = summary

	breakdown, err := d.stats.CategoryBreakdown(ctx, d.userID, from, to)
	if err != nil {
		return Report{}, err
	}
	total := decimal.Zero
	for _, b := range breakdown {
		total = total.Add(b.Amount)
	}
	for _, b := range breakdown {
		name := b.DimensionID
		if category, err := d.categories.Get(ctx, d.userID, b.DimensionID); err == nil {
			name = category.Name
		}
		percent := decimal.Zero
		if total.Sign() > 0 {
			percent = b.Amount.Div(total).Mul(decimal.NewFromInt(100))
		}
		report.Categories = append(report.Categories, CategoryLine{Name: name, Amount: b.Amount, Percent: percent})
	}

	transactions, err := d.listRange(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	report.Transactions = transactions
	return report, nil
}

// listRange pages through the user's transactions with the keyset cursor
// and keeps the ones inside [from, to].
func (d *Digest) listRange(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	end := to.AddDate(0, 0, 1)
	var out []models.Transaction
	query := models.TransactionQuery{Limit: 100, OrderBy: models.OrderByCreatedAt}
	for {
		page, next, err := d.processor.List(ctx, d.userID, query)
		if err != nil {
			return nil, err
		}
		for _, tx := range page {
			if !tx.CreatedAt.Before(from) && tx.CreatedAt.Before(end) {
				out = append(out, tx)
			}
		}
		if next == "" {
			return out, nil
		}
		query.Cursor = next
	}
}

// Text renders the Telegram message body.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Monthly Ledger Digest — %s*\n", r.From.Format("January 2006"))
	b.WriteString("═══════════════════\n\n")

	fmt.Fprintf(&b, "💰 *Balance:* %s %s\n\n", models.FormatAmount(r.Balance.Balance), r.Balance.CurrencyCode)

	for _, s := range r.Summary {
		fmt.Fprintf(&b, "Income: %s\nExpenses: %s\nTransfers: %s\n\n",
			models.FormatAmount(s.Income), models.FormatAmount(s.Expense), models.FormatAmount(s.Transfer))
	}

	if len(r.Categories) > 0 {
		b.WriteString("📈 *Category Breakdown:*\n")
		for _, c := range r.Categories {
			fmt.Fprintf(&b, "   %s: %s (%s%%)\n", c.Name, models.FormatAmount(c.Amount), c.Percent.Round(1))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%d transactions in %s\n", len(r.Transactions), r.From.Format("January"))
	return b.String()
}

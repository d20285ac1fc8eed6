package digest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"finance-ledger/internal/models"
)

// WriteCSV renders the report as a CSV document: summary, category
// breakdown, then the detailed transactions.
func WriteCSV(w io.Writer, report Report) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	header := [][]string{
		{"Monthly Ledger Report"},
		{"Period", report.From.Format("January 2006")},
		{"Generated", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{},
		{"SUMMARY"},
		{"Balance", models.FormatAmount(report.Balance.Balance), report.Balance.CurrencyCode},
	}
	for _, s := range report.Summary {
		header = append(header,
			[]string{"Income", models.FormatAmount(s.Income)},
			[]string{"Expenses", models.FormatAmount(s.Expense)},
			[]string{"Transfers", models.FormatAmount(s.Transfer)},
		)
	}
	header = append(header, []string{"Total Transactions", strconv.Itoa(len(report.Transactions))}, []string{})

	for _, row := range header {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if len(report.Categories) > 0 {
		if err := csvWriter.Write([]string{"CATEGORY BREAKDOWN"}); err != nil {
			return err
		}
		if err := csvWriter.Write([]string{"Category", "Amount", "Percentage"}); err != nil {
			return err
		}
		for _, c := range report.Categories {
			row := []string{
				c.Name,
				models.FormatAmount(c.Amount),
				c.Percent.Round(1).String() + "%",
			}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}
		if err := csvWriter.Write([]string{}); err != nil {
			return err
		}
	}

	if len(report.Transactions) > 0 {
		if err := csvWriter.Write([]string{"DETAILED TRANSACTIONS"}); err != nil {
			return err
		}
		if err := csvWriter.Write([]string{"Date", "Kind", "Amount", "Currency", "Account", "Description"}); err != nil {
			return err
		}
		for _, tx := range report.Transactions {
			row := []string{
				models.FormatDate(tx.CreatedAt),
				string(tx.Kind),
				models.FormatAmount(tx.Amount),
				tx.CurrencyID,
				tx.AccountID,
				tx.Description,
			}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}
	}

	return nil
}

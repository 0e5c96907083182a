// Package writer renders processed statements to CSV.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

var csvHeader = []string{"Date", "Details", "Amount", "Type", "Category", "Bank", "Statement Type"}

// WriteCSV writes transactions as CSV with a header row. Dates are emitted
// in ISO form so spreadsheets sort them correctly.
func WriteCSV(w io.Writer, txns []models.TransactionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range txns {
		t := &txns[i]
		row := []string{
			t.Date.Format("2006-01-02"),
			t.Details,
			t.Amount.StringFixed(2),
			string(t.Type),
			t.Category,
			string(t.Bank),
			string(t.StatementType),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDocumentCSV prefixes the transaction rows with a small metadata
// block: source file, period, and reconciled balances.
func WriteDocumentCSV(w io.Writer, doc *models.StatementDocument) error {
	cw := csv.NewWriter(w)
	meta := [][]string{
		{"Source", doc.Source},
		{"Bank", string(doc.Bank)},
		{"Statement Type", string(doc.StatementType)},
		{"Period", doc.MonthYear},
		{"Opening Balance", doc.Opening.StringFixed(2)},
		{"Closing Balance", doc.Closing.StringFixed(2)},
		{},
	}
	for _, row := range meta {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv metadata: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return WriteCSV(w, doc.Transactions)
}

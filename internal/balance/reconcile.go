// Package balance reconciles the two independent balance estimates produced
// per document (direct text-pattern extraction in the parsers, best-effort
// OCR here) and cross-checks stated balances against transaction totals.
package balance

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// tolerance is one cent: balances closer than this are considered equal.
var tolerance = decimal.RequireFromString("0.01")

// Reconcile merges the text-pattern and OCR balance estimates, applied
// independently to the opening and closing sides:
//
//   - both present within tolerance → either value;
//   - both present but differing → the text value wins, and the OCR value is
//     surfaced as a discrepancy warning rather than discarded silently;
//   - only one present → that one;
//   - neither present → zero, which callers treat as unknown.
func Reconcile(text, ocr Candidates, log zerolog.Logger) (opening, closing decimal.Decimal, warnings []models.Warning) {
	opening, w := pick("opening", text.Opening, ocr.Opening, log)
	if w != nil {
		warnings = append(warnings, *w)
	}
	closing, w = pick("closing", text.Closing, ocr.Closing, log)
	if w != nil {
		warnings = append(warnings, *w)
	}
	return opening, closing, warnings
}

func pick(side string, textVal, ocrVal decimal.Decimal, log zerolog.Logger) (decimal.Decimal, *models.Warning) {
	textPresent := !textVal.IsZero()
	ocrPresent := !ocrVal.IsZero()

	switch {
	case textPresent && ocrPresent:
		if textVal.Sub(ocrVal).Abs().LessThan(tolerance) {
			return textVal, nil
		}
		log.Warn().
			Str("side", side).
			Str("text", textVal.String()).
			Str("ocr", ocrVal.String()).
			Msg("balance discrepancy between text and ocr extraction")
		return textVal, &models.Warning{
			Kind: models.WarnBalanceDiscrepancy,
			Message: fmt.Sprintf("%s balance discrepancy: text $%s vs OCR $%s (text preferred)",
				side, textVal.StringFixed(2), ocrVal.StringFixed(2)),
		}
	case textPresent:
		return textVal, nil
	case ocrPresent:
		return ocrVal, nil
	default:
		return decimal.Zero, nil
	}
}

// Totals sums the debit and credit magnitudes of a transaction sequence.
func Totals(txns []models.TransactionRecord) (debits, credits decimal.Decimal) {
	for _, t := range txns {
		if t.Type == models.Debit {
			debits = debits.Add(t.Amount)
		} else {
			credits = credits.Add(t.Amount)
		}
	}
	return debits, credits
}

// CalculatedClosing derives the expected closing balance from the opening
// balance and transaction totals. Credit-card debits are charges that grow
// the balance owed; for deposit accounts debits shrink the balance.
func CalculatedClosing(opening, debits, credits decimal.Decimal, stype models.StatementType) decimal.Decimal {
	if stype == models.StatementCreditCard {
		return opening.Add(debits).Sub(credits)
	}
	return opening.Sub(debits).Add(credits)
}

// CrossCheck compares a document's stated closing balance against the value
// computed from its own transactions. A mismatch beyond tolerance is
// reported as a warning, never corrected.
func CrossCheck(doc *models.StatementDocument) *models.Warning {
	if doc.Opening.IsZero() || doc.Closing.IsZero() || len(doc.Transactions) == 0 {
		return nil
	}
	debits, credits := Totals(doc.Transactions)
	calculated := CalculatedClosing(doc.Opening, debits, credits, doc.StatementType)
	if calculated.Sub(doc.Closing).Abs().LessThan(tolerance) {
		return nil
	}
	return &models.Warning{
		Kind: models.WarnRunningBalance,
		Message: fmt.Sprintf("stated closing balance $%s disagrees with computed $%s",
			doc.Closing.StringFixed(2), calculated.StringFixed(2)),
	}
}

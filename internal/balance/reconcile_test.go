package balance

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReconcileAgreement(t *testing.T) {
	text := Candidates{Opening: dec("100.00"), Closing: dec("250.00")}
	ocr := Candidates{Opening: dec("100.00"), Closing: dec("250.00")}

	opening, closing, warnings := Reconcile(text, ocr, zerolog.Nop())
	assert.True(t, opening.Equal(dec("100.00")))
	assert.True(t, closing.Equal(dec("250.00")))
	assert.Empty(t, warnings)
}

func TestReconcileDiscrepancyPrefersText(t *testing.T) {
	text := Candidates{Opening: dec("100.00"), Closing: dec("250.00")}
	ocr := Candidates{Opening: dec("150.00"), Closing: dec("250.00")}

	opening, _, warnings := Reconcile(text, ocr, zerolog.Nop())
	assert.True(t, opening.Equal(dec("100.00")), "text value must win")
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarnBalanceDiscrepancy, warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, "100.00")
	assert.Contains(t, warnings[0].Message, "150.00")
}

func TestReconcileSingleSource(t *testing.T) {
	opening, closing, warnings := Reconcile(
		Candidates{Opening: dec("100.00")},
		Candidates{Closing: dec("250.00")},
		zerolog.Nop(),
	)
	assert.True(t, opening.Equal(dec("100.00")))
	assert.True(t, closing.Equal(dec("250.00")))
	assert.Empty(t, warnings)
}

func TestReconcileNeitherSource(t *testing.T) {
	opening, closing, warnings := Reconcile(Candidates{}, Candidates{}, zerolog.Nop())
	assert.True(t, opening.IsZero())
	assert.True(t, closing.IsZero())
	assert.Empty(t, warnings)
}

func TestReconcileWithinTolerance(t *testing.T) {
	// Sub-cent differences are rounding noise, not discrepancies.
	_, _, warnings := Reconcile(
		Candidates{Opening: dec("100.004")},
		Candidates{Opening: dec("100.00")},
		zerolog.Nop(),
	)
	assert.Empty(t, warnings)
}

func TestCalculatedClosing(t *testing.T) {
	debits, credits := dec("300.00"), dec("120.00")

	// Credit card: charges grow the balance owed.
	got := CalculatedClosing(dec("1000.00"), debits, credits, models.StatementCreditCard)
	assert.True(t, got.Equal(dec("1180.00")), "got %s", got)

	// Deposit account: debits shrink the balance.
	got = CalculatedClosing(dec("1000.00"), debits, credits, models.StatementChequing)
	assert.True(t, got.Equal(dec("820.00")), "got %s", got)
}

func TestCrossCheck(t *testing.T) {
	doc := &models.StatementDocument{
		StatementType: models.StatementChequing,
		Opening:       dec("1000.00"),
		Closing:       dec("900.00"),
		Transactions: []models.TransactionRecord{
			{Type: models.Debit, Amount: dec("150.00")},
			{Type: models.Credit, Amount: dec("50.00")},
		},
	}
	require.Nil(t, CrossCheck(doc), "1000 - 150 + 50 = 900 reconciles")

	doc.Closing = dec("950.00")
	w := CrossCheck(doc)
	require.NotNil(t, w)
	assert.Equal(t, models.WarnRunningBalance, w.Kind)
	assert.Contains(t, w.Message, "900.00")
}

func TestCrossCheckSkipsIncompleteDocuments(t *testing.T) {
	assert.Nil(t, CrossCheck(&models.StatementDocument{
		Closing: dec("900.00"),
		Transactions: []models.TransactionRecord{
			{Type: models.Debit, Amount: dec("1.00")},
		},
	}), "missing opening balance")

	assert.Nil(t, CrossCheck(&models.StatementDocument{
		Opening: dec("1000.00"),
		Closing: dec("1000.00"),
	}), "no transactions")
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank identifies the issuing institution of a statement.
type Bank string

const (
	BankTD      Bank = "TD"
	BankRBC     Bank = "RBC"
	BankCIBC    Bank = "CIBC"
	BankBMO     Bank = "BMO"
	BankUnknown Bank = "Unknown"
)

// StatementType determines the balance sign convention: credit-card debits
// are charges that increase the balance owed, deposit-account debits
// decrease the balance.
type StatementType string

const (
	StatementCreditCard StatementType = "Credit Card"
	StatementChequing   StatementType = "Chequing"
	StatementSavings    StatementType = "Savings"
	StatementUnknown    StatementType = "Unknown"
)

// TransactionType carries the sign of a transaction. Amount is always a
// non-negative magnitude.
type TransactionType string

const (
	Debit  TransactionType = "Debit"
	Credit TransactionType = "Credit"
)

// DefaultCategory is assigned until the categorizer finds a vendor match.
const DefaultCategory = "Uncategorized"

// TransactionRecord is a single normalized ledger entry produced by a
// statement parser. Details accumulates continuation lines during the parse
// pass; Category is assigned afterwards by the categorizer.
type TransactionRecord struct {
	ID            string          `json:"id,omitempty"`
	Date          time.Time       `json:"date"`
	Details       string          `json:"details"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"transactionType"`
	Category      string          `json:"category"`
	Bank          Bank            `json:"bank"`
	StatementType StatementType   `json:"statementType"`
}

// ParseResult is what a statement parser returns for one document: the
// ordered transactions plus the parser's own balance estimate taken from
// anchor phrases in the document text. Zero balances mean "not found".
type ParseResult struct {
	Transactions []TransactionRecord
	Opening      decimal.Decimal
	Closing      decimal.Decimal
}

// WarningKind classifies non-fatal conditions surfaced to the caller.
type WarningKind string

const (
	WarnEmptyDocument      WarningKind = "empty_document"
	WarnFormatUnknown      WarningKind = "format_unknown"
	WarnBalanceDiscrepancy WarningKind = "balance_discrepancy"
	WarnRunningBalance     WarningKind = "running_balance_mismatch"
)

// Warning is a structured non-fatal finding. Discrepancies are reported,
// never silently corrected.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// StatementDocument is the fully processed result for one input document.
type StatementDocument struct {
	Source        string              `json:"source"`
	Bank          Bank                `json:"bank"`
	StatementType StatementType       `json:"statementType"`
	MonthYear     string              `json:"monthYear"`
	Opening       decimal.Decimal     `json:"openingBalance"`
	Closing       decimal.Decimal     `json:"closingBalance"`
	Transactions  []TransactionRecord `json:"transactions"`
	Warnings      []Warning           `json:"warnings,omitempty"`
}

// Warn appends a structured warning to the document.
func (d *StatementDocument) Warn(kind WarningKind, msg string) {
	d.Warnings = append(d.Warnings, Warning{Kind: kind, Message: msg})
}

package parser

import (
	"fmt"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// Parser consumes the full line stream of one document and produces the
// ordered raw transactions plus the parser's own balance estimate.
type Parser interface {
	// Parse takes the per-page text of a statement and returns structured
	// results. A single malformed line never fails the whole document.
	Parse(pages []string) (*models.ParseResult, error)
	// Name returns a human-readable parser name.
	Name() string
}

// Key identifies a registered parser by bank and statement type.
type Key struct {
	Bank models.Bank
	Type models.StatementType
}

var registry = map[Key]func() Parser{}

// Register installs a parser constructor for a (bank, statement type) pair.
// New banks register here without touching dispatch logic.
func Register(bank models.Bank, stype models.StatementType, ctor func() Parser) {
	registry[Key{Bank: bank, Type: stype}] = ctor
}

func init() {
	Register(models.BankTD, models.StatementCreditCard, func() Parser {
		return &TDCreditCardParser{}
	})
	Register(models.BankTD, models.StatementChequing, func() Parser {
		return &ChequingParser{Bank: models.BankTD}
	})
	Register(models.BankTD, models.StatementSavings, func() Parser {
		return &ChequingParser{Bank: models.BankTD, StatementType: models.StatementSavings}
	})
	Register(models.BankCIBC, models.StatementChequing, func() Parser {
		return &ChequingParser{Bank: models.BankCIBC}
	})
	Register(models.BankCIBC, models.StatementSavings, func() Parser {
		return &ChequingParser{Bank: models.BankCIBC, StatementType: models.StatementSavings}
	})
}

// New returns the registered parser for the given bank and statement type.
func New(bank models.Bank, stype models.StatementType) (Parser, error) {
	ctor, ok := registry[Key{Bank: bank, Type: stype}]
	if !ok {
		return nil, fmt.Errorf("no parser registered for %s / %s", bank, stype)
	}
	return ctor(), nil
}

// Supported reports whether a dedicated parser exists for the pair. Callers
// fall back to the generic OCR path when it does not.
func Supported(bank models.Bank, stype models.StatementType) bool {
	_, ok := registry[Key{Bank: bank, Type: stype}]
	return ok
}

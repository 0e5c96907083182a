package parser

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// ChequingParser handles columnar chequing/savings statements (TD, CIBC).
//
// Transaction lines carry paired amount columns:
//
//	description amount runningbalance
//
// The date is not on the transaction line itself; it comes from the most
// recent date-prefixed line ("Jan 15 ...") within the page. Amounts are
// unsigned — Debit vs Credit is inferred from keyword classification of the
// description, never from the amount's sign.
type ChequingParser struct {
	Bank          models.Bank
	StatementType models.StatementType
}

func (p *ChequingParser) Name() string {
	return fmt.Sprintf("%s chequing", p.Bank)
}

func (p *ChequingParser) statementType() models.StatementType {
	if p.StatementType == "" {
		return models.StatementChequing
	}
	return p.StatementType
}

func (p *ChequingParser) Parse(pages []string) (*models.ParseResult, error) {
	result := &models.ParseResult{}

	result.Opening, result.Closing = ExtractBalances(pages)

	statementYear, _ := statementYearMonth(pages)

	var currentDate string

	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			// A date prefix starts a new current-date context; the rest of
			// the line is re-processed as a content line.
			if date, rest, ok := SplitDatePrefix(line); ok {
				currentDate = date
				line = rest
				if line == "" {
					continue
				}
			}

			lower := strings.ToLower(line)
			if strings.Contains(lower, "opening balance") || strings.Contains(lower, "closing balance") {
				continue
			}

			matches := amountPairPattern.FindAllStringSubmatch(line, -1)
			if len(matches) == 0 {
				// Continuation line: append to the most recent record.
				// Text seen before the first transaction has nothing to
				// attach to and is discarded.
				if n := len(result.Transactions); n > 0 {
					result.Transactions[n-1].Details += " " + line
				}
				continue
			}

			// Multiple amount-pairs on one line each produce their own
			// record: fragment i pairs with match i. A trailing fragment
			// with no following match is a running total, not a
			// description, and is dropped.
			fragments := amountPairPattern.Split(line, -1)
			for i, m := range matches {
				desc := ""
				if i < len(fragments) {
					desc = strings.TrimSpace(fragments[i])
				}

				amount, err := ParseAmount(m[1])
				if err != nil {
					continue // malformed amount: drop this entry, keep parsing
				}
				date, err := monthDayDate(currentDate, statementYear)
				if err != nil {
					continue // no usable date context yet
				}

				result.Transactions = append(result.Transactions, models.TransactionRecord{
					Date:          date,
					Details:       desc,
					Amount:        amount.Abs(),
					Type:          ClassifyTransactionType(desc),
					Category:      models.DefaultCategory,
					Bank:          p.Bank,
					StatementType: p.statementType(),
				})
			}
		}
	}

	return result, nil
}

package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// TDCreditCardParser handles TD credit-card statements.
//
// Transaction lines carry two dates (posting and transaction) followed by
// the description and a signed dollar amount:
//
//	postMonth postDay transMonth transDay DESCRIPTION [-]$amount
//
// A leading minus flips the transaction from Debit (a charge) to Credit (a
// payment or refund). The transaction year is the statement's own stated
// year, with a rollover rule for statements spanning a calendar-year
// boundary: December transactions on a January statement belong to the
// previous year.
type TDCreditCardParser struct{}

func (p *TDCreditCardParser) Name() string { return "TD credit card" }

var (
	tdCreditTxnPattern = regexp.MustCompile(
		`^(` + monthAlternation + `)(\d{1,2})\s*(` + monthAlternation + `)(\d{1,2})\s+(.*?)(-?)\$([\d,]+\.\d{2})`,
	)

	// Looser fallback for lines that look like a transaction start but miss
	// the strict pattern (spacing artifacts from text extraction).
	tdCreditFallbackPattern = regexp.MustCompile(
		`^(` + monthAlternation + `\d{1,2})\s*(` + monthAlternation + `\d{1,2})\s+(.+?)\s*\$(-?[\d,]+\.\d{2})`,
	)

	tdCreditStartPattern = regexp.MustCompile(`^` + monthAlternation + `\d{1,2}`)

	// "statementdate:january5,2025" on the flattened text.
	flatStatementDatePattern = regexp.MustCompile(`statementdate:([a-z]+)(\d{1,2}),(\d{4})`)
)

func (p *TDCreditCardParser) Parse(pages []string) (*models.ParseResult, error) {
	result := &models.ParseResult{}

	result.Opening, result.Closing = ExtractBalances(pages)

	statementYear, statementMonth := p.statementDate(pages)

	for _, page := range pages {
		for _, raw := range strings.Split(page, "\n") {
			line := strings.ToLower(strings.TrimSpace(raw))
			if line == "" ||
				strings.Contains(line, "statement") ||
				strings.Contains(line, "summary") ||
				strings.Contains(line, "balance") {
				continue
			}

			if m := tdCreditTxnPattern.FindStringSubmatch(line); m != nil {
				postMonth, postDay := m[1], m[2]
				desc := strings.TrimSpace(m[5])
				amountText := m[7]
				if m[6] == "-" {
					amountText = "-" + amountText
				}
				if rec, ok := p.buildRecord(postMonth, postDay, desc, amountText, statementMonth, statementYear); ok {
					result.Transactions = append(result.Transactions, rec)
				}
				continue
			}

			// A line starting like a transaction is a failed strict match —
			// retry it with the looser pattern before treating it as a
			// continuation.
			if tdCreditStartPattern.MatchString(line) {
				if m := tdCreditFallbackPattern.FindStringSubmatch(line); m != nil {
					postMonth := m[1][:3]
					postDay := m[1][3:]
					if rec, ok := p.buildRecord(postMonth, postDay, strings.TrimSpace(m[3]), m[4], statementMonth, statementYear); ok {
						result.Transactions = append(result.Transactions, rec)
						continue
					}
				}
			}

			// Continuation of the previous description. Lines arriving
			// before the first transaction have nothing to attach to and
			// are discarded.
			if n := len(result.Transactions); n > 0 {
				result.Transactions[n-1].Details += " " + line
			}
		}
	}

	return result, nil
}

// buildRecord assembles one transaction, applying the year-rollover rule and
// the sign convention: positive amounts are charges (Debit), negative
// amounts are payments/refunds (Credit). The stored amount is always the
// non-negative magnitude. Malformed tokens drop the line, never the
// document.
func (p *TDCreditCardParser) buildRecord(postMonth, postDay, desc, amountText, statementMonth string, statementYear int) (models.TransactionRecord, bool) {
	year := rolloverYear(postMonth, statementMonth, statementYear)
	date, err := monthDayDate(postMonth+" "+postDay, year)
	if err != nil {
		return models.TransactionRecord{}, false
	}

	signed, err := ParseAmount(amountText)
	if err != nil {
		return models.TransactionRecord{}, false
	}

	txType := models.Debit
	if signed.IsNegative() {
		txType = models.Credit
	}

	return models.TransactionRecord{
		Date:          date,
		Details:       desc,
		Amount:        signed.Abs(),
		Type:          txType,
		Category:      models.DefaultCategory,
		Bank:          models.BankTD,
		StatementType: models.StatementCreditCard,
	}, true
}

// statementDate reads the statement's own month and year from the flattened
// text, falling back to the generic statement-date line.
func (p *TDCreditCardParser) statementDate(pages []string) (year int, month string) {
	flat := FlattenText(pages...)
	if m := flatStatementDatePattern.FindStringSubmatch(flat); m != nil {
		month = m[1]
		if len(month) > 3 {
			month = month[:3]
		}
		if y, err := strconv.Atoi(m[3]); err == nil {
			return y, month
		}
	}
	return statementYearMonth(pages)
}

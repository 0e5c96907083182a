package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// monthAlternation matches a lowercase three-letter month abbreviation.
const monthAlternation = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	// "Jan 15 ..." — starts a new current-date context; the remainder of
	// the line is re-processed as a content line.
	datePrefixPattern = regexp.MustCompile(`(?i)^((Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2})(.*)$`)

	// Paired "amount runningbalance" columns on chequing-style statements.
	// Column gaps vary with extraction, so any whitespace run separates the
	// pair. The same pattern drives both matching and fragment splitting.
	amountPairPattern = regexp.MustCompile(`([\d,]+\.\d{2})\s+([\d,]+\.\d{2})`)

	// A statement's own stated date, e.g. "STATEMENT DATE: May 3, 2025".
	statementDatePattern = regexp.MustCompile(`(?i)STATEMENT DATE:\s+([A-Za-z]+)\s+\d{1,2},\s+(\d{4})`)
)

// ParseAmount converts an amount string like "1,234.56", "$4.50" or
// "-$2,397.36" to an exact decimal. Thousands separators and currency
// symbols are stripped; the sign is preserved.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

// SplitDatePrefix checks whether a line starts with a "Mon D" date. If so it
// returns the date token and the rest of the line for content re-processing.
func SplitDatePrefix(line string) (date, rest string, ok bool) {
	m := datePrefixPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[3]), true
}

// monthDayDate builds a calendar date from a "Mon D" token and a year.
func monthDayDate(monthDay string, year int) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(monthDay))
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("malformed month-day token %q", monthDay)
	}
	month, ok := monthNumbers[fields[0]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", fields[0])
	}
	var day int
	if _, err := fmt.Sscanf(fields[1], "%d", &day); err != nil {
		return time.Time{}, fmt.Errorf("bad day %q: %w", fields[1], err)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// parseSlashDate parses an MM/DD/YYYY date as produced by the generic OCR
// row grammar.
func parseSlashDate(s string) (time.Time, error) {
	return time.Parse("01/02/2006", s)
}

// rolloverYear applies the year-rollover rule: a December transaction on a
// statement dated January belongs to the previous calendar year.
func rolloverYear(txnMonth, statementMonth string, statementYear int) int {
	if strings.ToLower(txnMonth) == "dec" && strings.ToLower(statementMonth) == "jan" {
		return statementYear - 1
	}
	return statementYear
}

// statementYearMonth reads the statement's own stated month and year from
// the raw page text. Falls back to the current year and January when the
// statement does not carry a date line.
func statementYearMonth(pages []string) (year int, month string) {
	year = time.Now().Year()
	month = "jan"
	for _, page := range pages {
		if m := statementDatePattern.FindStringSubmatch(page); m != nil {
			if len(m[1]) >= 3 {
				month = strings.ToLower(m[1][:3])
			}
			fmt.Sscanf(m[2], "%d", &year)
			return year, month
		}
	}
	return year, month
}

// MonthYearLabel derives a statement period label such as "Jan_2025",
// preferring the statement's own stated date and falling back to the first
// transaction's date.
func MonthYearLabel(pages []string, txns []models.TransactionRecord) string {
	for _, page := range pages {
		if m := statementDatePattern.FindStringSubmatch(page); m != nil && len(m[1]) >= 3 {
			var year int
			if _, err := fmt.Sscanf(m[2], "%d", &year); err == nil {
				mon := strings.ToLower(m[1][:3])
				if num, ok := monthNumbers[mon]; ok {
					return fmt.Sprintf("%s_%d", num.String()[:3], year)
				}
			}
		}
	}
	if len(txns) > 0 && !txns[0].Date.IsZero() {
		return txns[0].Date.Format("Jan_2006")
	}
	return ""
}

// FlattenText lowercases the given pages and strips all whitespace. This is
// the normalized form used by format detection and balance anchor lookups.
func FlattenText(pages ...string) string {
	var b strings.Builder
	for _, page := range pages {
		for _, r := range strings.ToLower(page) {
			switch r {
			case ' ', '\t', '\n', '\r', '\u00a0':
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Keyword precedence for Debit/Credit classification. The credit list is
// checked first and wins immediately: refund-like language always overrides
// generic debit language even when both appear on the same line. The
// e-transfer reclaim/paydirect variants must precede the generic
// "e-transfer" debit keyword for the same reason.
var (
	creditKeywords = []string{
		"rewards", "rebate", "refund", "e-transfer reclaim", "e-transfer paydirect",
	}
	debitKeywords = []string{
		"retail", "debit", "purchase", "fulfill request", "e-transfer",
		"bill", "charge", "petro", "service", "withdrawal",
	}
)

// ClassifyTransactionType assigns Debit or Credit from the transaction
// details. Absence of any keyword defaults to Credit; see DESIGN.md for why
// this bias is kept.
func ClassifyTransactionType(details string) models.TransactionType {
	text := strings.ToLower(details)
	for _, kw := range creditKeywords {
		if strings.Contains(text, kw) {
			return models.Credit
		}
	}
	for _, kw := range debitKeywords {
		if strings.Contains(text, kw) {
			return models.Debit
		}
	}
	return models.Credit
}

package parser

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Anchor-phrase lookups run against the flattened (lowercase, whitespace
// stripped) whole-document text, independent of the line-by-line transaction
// scan. Order matters: credit-card phrasing is tried before the generic
// deposit-account phrasing, and the payment-thank-you fallback last.
var (
	openingAnchors = []*regexp.Regexp{
		regexp.MustCompile(`previousstatementbalance:?\$?(-?[\d,]+\.\d{2})`),
		regexp.MustCompile(`openingbalance:?\$?(-?[\d,]+\.\d{2})`),
		regexp.MustCompile(`payment-thankyou-\$(-?[\d,]+\.\d{2})`),
	}
	closingAnchors = []*regexp.Regexp{
		regexp.MustCompile(`newbalance:?\$?(-?[\d,]+\.\d{2})`),
		regexp.MustCompile(`closingbalance:?\$?(-?[\d,]+\.\d{2})`),
	}
)

// ExtractBalances finds the statement's stated opening and closing balances
// by direct pattern matching over the flattened document text. A zero value
// means "not found"; callers treat it as unknown, not a real balance.
func ExtractBalances(pages []string) (opening, closing decimal.Decimal) {
	flat := FlattenText(pages...)
	return firstAnchorMatch(flat, openingAnchors), firstAnchorMatch(flat, closingAnchors)
}

func firstAnchorMatch(flat string, anchors []*regexp.Regexp) decimal.Decimal {
	for _, re := range anchors {
		if m := re.FindStringSubmatch(flat); m != nil {
			if v, err := ParseAmount(m[1]); err == nil {
				return v
			}
		}
	}
	return decimal.Zero
}

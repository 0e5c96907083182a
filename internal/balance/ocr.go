package balance

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Candidates holds one extraction strategy's balance estimate. A zero value
// means "not found"; callers treat it as unknown, not a real balance.
type Candidates struct {
	Opening decimal.Decimal
	Closing decimal.Decimal
}

// Region is a rectangle (300 DPI pixel coordinates) believed to contain a
// balance line. A zero-size region means the whole page.
type Region struct {
	X, Y, W, H int
}

// Zero reports whether the region denotes the whole page.
func (r Region) Zero() bool { return r == Region{} }

// RegionDetector is the pluggable region-detection step of the OCR
// collaborator.
type RegionDetector interface {
	Detect(page int) []Region
}

// FullPage is the default detector: one whole-page region per page.
type FullPage struct{}

func (FullPage) Detect(int) []Region { return []Region{{}} }

// OCRSource produces best-effort text lines from page pixels. Implemented by
// the extractor package; faked in tests.
type OCRSource interface {
	PageCount() int
	// Lines OCRs a region of a page under the given engine configuration.
	Lines(page int, r Region, config string) ([]string, error)
}

// OCR engine configurations attempted per page, strictest first.
var ocrConfigs = []string{
	"--psm 6 -c tessedit_char_whitelist=0123456789,.$",
	"--psm 6",
	"--psm 3",
	"--psm 11",
}

// Anchor-phrase synonym lists. The full-page pass uses the long phrases, the
// region pass the single-word variants (region crops often cut phrases off).
var (
	openingPhrases = []string{
		"opening balance", "previous balance", "beginning balance",
		"balance forward", "previous statement",
	}
	closingPhrases = []string{
		"closing balance", "new balance", "ending balance",
		"current balance", "balance due", "statement balance",
	}
	openingWords = []string{"opening", "previous", "beginning", "forward"}
	closingWords = []string{"closing", "new", "ending", "due"}
)

var ocrAmountPattern = regexp.MustCompile(`\$?\s*([\d,]+\.\d{2})`)

var balanceCeiling = decimal.NewFromInt(1_000_000)

// FromOCR extracts balance candidates from page images. It tries up to
// maxPages pages under each OCR configuration, full page first and then
// detected regions, short-circuiting as soon as both balances are found.
// The retry loop is bounded by pages × len(configs) × regions and always
// terminates.
func FromOCR(src OCRSource, det RegionDetector, maxPages int, log zerolog.Logger) Candidates {
	var cand Candidates
	if src == nil {
		return cand
	}
	if det == nil {
		det = FullPage{}
	}

	pages := src.PageCount()
	if pages > maxPages {
		pages = maxPages
	}

	for page := 0; page < pages; page++ {
		for _, config := range ocrConfigs {
			lines, err := src.Lines(page, Region{}, config)
			if err != nil {
				log.Debug().Err(err).Int("page", page).Str("config", config).Msg("ocr page attempt failed")
			} else {
				scanBalanceLines(lines, openingPhrases, closingPhrases, &cand)
			}
			if cand.found() {
				return cand
			}

			for _, r := range det.Detect(page) {
				if r == (Region{}) {
					continue // already covered by the full-page pass
				}
				lines, err := src.Lines(page, r, config)
				if err != nil {
					continue
				}
				scanBalanceLines(lines, openingWords, closingWords, &cand)
				if cand.found() {
					return cand
				}
			}
		}
	}

	if !cand.found() {
		log.Debug().
			Str("opening", cand.Opening.String()).
			Str("closing", cand.Closing.String()).
			Msg("ocr balance extraction incomplete")
	}
	return cand
}

func (c Candidates) found() bool {
	return c.Opening.IsPositive() && c.Closing.IsPositive()
}

// scanBalanceLines fills in any still-missing candidate from lines that
// contain an anchor phrase followed by an amount. Values outside the
// (0, 1,000,000) sanity window are ignored as OCR noise.
func scanBalanceLines(lines []string, opening, closing []string, cand *Candidates) {
	for _, line := range lines {
		line = strings.ToLower(line)
		if cand.Opening.IsZero() && containsAnyPhrase(line, opening) {
			if v, ok := firstSaneAmount(line); ok {
				cand.Opening = v
			}
		}
		if cand.Closing.IsZero() && containsAnyPhrase(line, closing) {
			if v, ok := firstSaneAmount(line); ok {
				cand.Closing = v
			}
		}
	}
}

func containsAnyPhrase(line string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

func firstSaneAmount(line string) (decimal.Decimal, bool) {
	m := ocrAmountPattern.FindStringSubmatch(line)
	if m == nil {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	if !v.IsPositive() || v.GreaterThanOrEqual(balanceCeiling) {
		return decimal.Zero, false
	}
	return v, true
}

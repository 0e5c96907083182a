package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// GenericParser is the fallback for unrecognized bank/type combinations. It
// is fed best-effort text lines (typically OCR output from probable table
// regions), groups them into approximate rows by clustering on line length,
// and parses each clustered row with a generic `date description $amount`
// pattern.
type GenericParser struct{}

func (p *GenericParser) Name() string { return "generic" }

// clusterEps is the maximum line-length gap allowed within one cluster.
const clusterEps = 50

var genericTxnPattern = regexp.MustCompile(
	`(\d{2}/\d{2}/\d{4})\s+(.*?)\s+(-?)\$?([\d,]+\.\d{2})`,
)

func (p *GenericParser) Parse(pages []string) (*models.ParseResult, error) {
	result := &models.ParseResult{}
	result.Opening, result.Closing = ExtractBalances(pages)

	for _, page := range pages {
		var lines []string
		for _, line := range strings.Split(page, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}

		for _, cluster := range clusterByLength(lines, clusterEps) {
			row := strings.Join(cluster, " ")
			if rec, ok := p.parseRow(row); ok {
				result.Transactions = append(result.Transactions, rec)
			}
		}
	}

	return result, nil
}

func (p *GenericParser) parseRow(row string) (models.TransactionRecord, bool) {
	m := genericTxnPattern.FindStringSubmatch(row)
	if m == nil {
		return models.TransactionRecord{}, false
	}

	date, err := parseSlashDate(m[1])
	if err != nil {
		return models.TransactionRecord{}, false
	}

	amountText := m[4]
	if m[3] == "-" {
		amountText = "-" + amountText
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
		Details:       strings.TrimSpace(m[2]),
		Amount:        signed.Abs(),
		Type:          txType,
		Category:      models.DefaultCategory,
		Bank:          models.BankUnknown,
		StatementType: models.StatementUnknown,
	}, true
}

// clusterByLength groups lines whose lengths chain within eps of each other,
// a cheap single-feature approximation of row grouping: cells of one table
// row tend to OCR into lines of similar length. Every line lands in exactly
// one cluster; clusters preserve input order internally.
func clusterByLength(lines []string, eps int) [][]string {
	if len(lines) == 0 {
		return nil
	}

	type lenIdx struct{ length, idx int }
	sorted := make([]lenIdx, len(lines))
	for i, line := range lines {
		sorted[i] = lenIdx{length: len(line), idx: i}
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].length < sorted[b].length })

	// Chain neighbors: a gap greater than eps starts a new cluster.
	labels := make([]int, len(lines))
	label := 0
	labels[sorted[0].idx] = 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].length-sorted[i-1].length > eps {
			label++
		}
		labels[sorted[i].idx] = label
	}

	clusters := make([][]string, label+1)
	for i, line := range lines {
		clusters[labels[i]] = append(clusters[labels[i]], line)
	}
	return clusters
}

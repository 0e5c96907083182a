// Package statement orchestrates the full pipeline for one document: text
// extraction, format detection, parsing, balance reconciliation, and
// categorization.
package statement

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/finance-categorizer/internal/balance"
	"github.com/insightdelivered/finance-categorizer/internal/categorize"
	"github.com/insightdelivered/finance-categorizer/internal/extractor"
	"github.com/insightdelivered/finance-categorizer/internal/models"
	"github.com/insightdelivered/finance-categorizer/internal/parser"
)

// OCRFactory opens an OCR source for one PDF. A nil factory disables the
// OCR balance pass entirely.
type OCRFactory func(path string) (OCRCloser, error)

// OCRCloser is a balance.OCRSource with a resource lifetime.
type OCRCloser interface {
	balance.OCRSource
	Close() error
}

// Processor runs the pipeline. Zero-value fields get working defaults from
// NewProcessor; construct by hand in tests to stub collaborators.
type Processor struct {
	Extract     extractor.ExtractFunc
	NewOCR      OCRFactory
	Regions     balance.RegionDetector
	Categorizer *categorize.Categorizer
	MaxOCRPages int
	Log         zerolog.Logger
}

// NewProcessor wires the production collaborators.
func NewProcessor(cat *categorize.Categorizer, ocrEnabled bool, maxOCRPages int, log zerolog.Logger) *Processor {
	p := &Processor{
		Extract:     extractor.New(log).Pages,
		Regions:     balance.FullPage{},
		Categorizer: cat,
		MaxOCRPages: maxOCRPages,
		Log:         log,
	}
	if ocrEnabled {
		p.NewOCR = func(path string) (OCRCloser, error) {
			return extractor.NewOCR(path, log)
		}
	}
	return p
}

// Process runs one PDF through the pipeline. Parse-level problems surface
// as warnings on the returned document; only extraction failures are
// errors.
func (p *Processor) Process(ctx context.Context, path string) (*models.StatementDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, err := p.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", path, err)
	}

	doc := &models.StatementDocument{
		Source:        filepath.Base(path),
		Bank:          models.BankUnknown,
		StatementType: models.StatementUnknown,
	}

	hasText := len(pages) > 0 && parser.FlattenText(pages...) != ""

	bank, stype := models.BankUnknown, models.StatementUnknown
	if hasText {
		bank, stype = parser.DetectFormat(pages[0])
	}
	doc.Bank, doc.StatementType = bank, stype

	prs, perr := parser.New(bank, stype)
	generic := perr != nil
	if generic {
		prs = &parser.GenericParser{}
	}
	p.Log.Info().Str("source", doc.Source).Str("parser", prs.Name()).Msg("parsing statement")

	result := &models.ParseResult{}
	if hasText {
		result, err = prs.Parse(pages)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", path, err)
		}
	}

	// Unrecognized formats are often scans with no usable text layer. When
	// the text-layer pass found nothing, rerun the generic grammar over
	// OCR-derived lines.
	if generic && len(result.Transactions) == 0 {
		if ocrPages := p.ocrText(ctx, path); len(ocrPages) > 0 {
			if ocrResult, oerr := prs.Parse(ocrPages); oerr == nil {
				result.Transactions = ocrResult.Transactions
				if result.Opening.IsZero() {
					result.Opening = ocrResult.Opening
				}
				if result.Closing.IsZero() {
					result.Closing = ocrResult.Closing
				}
			}
		}
	}

	if !hasText && len(result.Transactions) == 0 {
		doc.Warn(models.WarnEmptyDocument, "no text could be extracted from the document")
		return doc, nil
	}
	if generic {
		doc.Warn(models.WarnFormatUnknown,
			fmt.Sprintf("unrecognized statement format (%s/%s); generic line grammar applied", bank, stype))
	}

	textCand := balance.Candidates{Opening: result.Opening, Closing: result.Closing}
	ocrCand := p.ocrBalances(ctx, path)
	opening, closing, warnings := balance.Reconcile(textCand, ocrCand, p.Log)
	doc.Opening, doc.Closing = opening, closing
	doc.Warnings = append(doc.Warnings, warnings...)

	doc.Transactions = result.Transactions
	if p.Categorizer != nil {
		p.Categorizer.Apply(doc.Transactions)
	}
	doc.MonthYear = parser.MonthYearLabel(pages, doc.Transactions)

	if w := balance.CrossCheck(doc); w != nil {
		doc.Warnings = append(doc.Warnings, *w)
	}
	return doc, nil
}

// ocrTextConfig recognizes page text as a uniform block, which suits the
// tabular layout of statement bodies.
const ocrTextConfig = "--psm 6"

// ocrText produces one best-effort text page per OCRed page, reading every
// detected region. OCR failures yield fewer (or no) pages, never an error.
func (p *Processor) ocrText(ctx context.Context, path string) []string {
	if p.NewOCR == nil || ctx.Err() != nil {
		return nil
	}
	src, err := p.NewOCR(path)
	if err != nil {
		p.Log.Warn().Err(err).Str("path", path).Msg("ocr source unavailable")
		return nil
	}
	defer src.Close()

	det := p.Regions
	if det == nil {
		det = balance.FullPage{}
	}
	pageCount := src.PageCount()
	if pageCount > p.MaxOCRPages {
		pageCount = p.MaxOCRPages
	}

	var out []string
	for page := 0; page < pageCount; page++ {
		var lines []string
		for _, r := range det.Detect(page) {
			ls, err := src.Lines(page, r, ocrTextConfig)
			if err != nil {
				p.Log.Debug().Err(err).Int("page", page).Msg("ocr text attempt failed")
				continue
			}
			lines = append(lines, ls...)
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return out
}

// ocrBalances runs the OCR balance pass when configured. OCR failures are
// logged and yield empty candidates; the pipeline never fails on them.
func (p *Processor) ocrBalances(ctx context.Context, path string) balance.Candidates {
	if p.NewOCR == nil || ctx.Err() != nil {
		return balance.Candidates{}
	}
	src, err := p.NewOCR(path)
	if err != nil {
		p.Log.Warn().Err(err).Str("path", path).Msg("ocr source unavailable")
		return balance.Candidates{}
	}
	defer src.Close()
	return balance.FromOCR(src, p.Regions, p.MaxOCRPages, p.Log)
}

// BatchResult pairs one input path with its outcome.
type BatchResult struct {
	Path string
	Doc  *models.StatementDocument
	Err  error
}

// ProcessBatch fans paths out over a bounded worker pool. One document
// failing never stops the others; results come back in input order.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	results := make([]BatchResult, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				doc, err := p.Process(ctx, paths[i])
				results[i] = BatchResult{Path: paths[i], Doc: doc, Err: err}
			}
		}()
	}

	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(paths); j++ {
				results[j] = BatchResult{Path: paths[j], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

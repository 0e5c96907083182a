// Package extractor pulls page text out of statement PDFs, falling back
// through extraction methods until one yields readable text.
package extractor

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// commonWords are tokens that appear on virtually every Canadian bank
// statement. Extracted text containing none of them is treated as garbage
// (an image-only scan, or a font with a broken character map).
var commonWords = []string{
	"balance", "account", "statement", "date", "transaction",
	"payment", "deposit", "withdrawal", "total", "amount",
}

// ExtractFunc produces per-page text for a PDF on disk.
type ExtractFunc func(path string) ([]string, error)

// Extractor reads PDF text, first with the embedded reader and then by
// shelling out to pdftotext when the embedded reader yields nothing usable.
type Extractor struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Pages returns one string per PDF page. Pages may be empty strings when a
// page is image-only; the slice is empty only when no method produced any
// readable text at all.
func (e *Extractor) Pages(path string) ([]string, error) {
	pages, err := e.embeddedPages(path)
	if err != nil {
		e.log.Debug().Err(err).Str("path", path).Msg("embedded pdf reader failed")
	}
	if readable(pages) {
		return pages, nil
	}

	fallback, ferr := e.pdftotextPages(path)
	if ferr != nil {
		e.log.Debug().Err(ferr).Str("path", path).Msg("pdftotext fallback failed")
		if err != nil {
			return nil, fmt.Errorf("extract %q: %w", path, err)
		}
		return pages, nil
	}
	if readable(fallback) {
		e.log.Info().Str("path", path).Msg("using pdftotext fallback text")
		return fallback, nil
	}

	// Neither method produced readable text. Prefer whichever got more
	// characters so downstream OCR at least knows the page count.
	if textLen(fallback) > textLen(pages) {
		return fallback, nil
	}
	return pages, nil
}

// embeddedPages extracts text with the pure-Go reader. The reader panics on
// some malformed cross-reference tables, so the call is guarded.
func (e *Extractor) embeddedPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pdftotextPages shells out to poppler's pdftotext with layout preserved,
// then splits on the form-feed page separator it emits.
func (e *Extractor) pdftotextPages(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	pages := strings.Split(out.String(), "\f")
	// pdftotext terminates the last page with a form feed too.
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

// readable reports whether extracted text looks like statement text rather
// than decode garbage.
func readable(pages []string) bool {
	joined := strings.ToLower(strings.Join(pages, " "))
	if len(strings.TrimSpace(joined)) < 50 {
		return false
	}
	for _, w := range commonWords {
		if strings.Contains(joined, w) {
			return true
		}
	}
	return false
}

func textLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}

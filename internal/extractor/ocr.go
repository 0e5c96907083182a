package extractor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/finance-categorizer/internal/balance"
)

// ocrDPI is the render resolution for OCR rasters. Region coordinates in
// balance.Region are expressed in pixels at this resolution.
const ocrDPI = 300

// OCR renders statement pages to images with pdftoppm and reads them with
// tesseract. It implements balance.OCRSource. Rendered full-page images are
// cached in a temp dir so the four tesseract config passes share one render.
type OCR struct {
	path    string
	pages   int
	workDir string
	log     zerolog.Logger

	rendered map[int]string
}

// NewOCR prepares an OCR source for one PDF. Close releases the render
// cache.
func NewOCR(path string, log zerolog.Logger) (*OCR, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q for ocr: %w", path, err)
	}
	n := reader.NumPage()
	f.Close()

	dir, err := os.MkdirTemp("", "fincat-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr temp dir: %w", err)
	}
	return &OCR{
		path:     path,
		pages:    n,
		workDir:  dir,
		log:      log,
		rendered: make(map[int]string),
	}, nil
}

func (o *OCR) PageCount() int { return o.pages }

// Close removes rendered page images.
func (o *OCR) Close() error { return os.RemoveAll(o.workDir) }

// Lines OCRs one page (page is zero-based) and returns non-empty text
// lines. A non-zero region crops the render to that pixel rectangle before
// recognition; config is passed through to tesseract verbatim.
func (o *OCR) Lines(page int, r balance.Region, config string) ([]string, error) {
	if page < 0 || page >= o.pages {
		return nil, fmt.Errorf("ocr page %d out of range [0,%d)", page, o.pages)
	}

	var img string
	var err error
	if r.Zero() {
		img, err = o.renderFull(page)
	} else {
		img, err = o.renderRegion(page, r)
		if img != "" {
			defer os.Remove(img)
		}
	}
	if err != nil {
		return nil, err
	}

	text, err := o.tesseract(img, config)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// renderFull rasterizes a whole page once and caches the result.
func (o *OCR) renderFull(page int) (string, error) {
	if img, ok := o.rendered[page]; ok {
		return img, nil
	}
	prefix := filepath.Join(o.workDir, fmt.Sprintf("page-%d", page))
	img, err := o.pdftoppm(page, prefix, nil)
	if err != nil {
		return "", err
	}
	o.rendered[page] = img
	return img, nil
}

// renderRegion rasterizes a cropped rectangle of a page. Crops are not
// cached; callers sweep many regions and each is read once per config.
func (o *OCR) renderRegion(page int, r balance.Region) (string, error) {
	prefix := filepath.Join(o.workDir, fmt.Sprintf("crop-%d-%d-%d", page, r.X, r.Y))
	return o.pdftoppm(page, prefix, []string{
		"-x", strconv.Itoa(r.X),
		"-y", strconv.Itoa(r.Y),
		"-W", strconv.Itoa(r.W),
		"-H", strconv.Itoa(r.H),
	})
}

func (o *OCR) pdftoppm(page int, prefix string, extra []string) (string, error) {
	pageNum := strconv.Itoa(page + 1)
	args := []string{
		"-png",
		"-r", strconv.Itoa(ocrDPI),
		"-f", pageNum, "-l", pageNum,
		"-singlefile",
	}
	args = append(args, extra...)
	args = append(args, o.path, prefix)

	var stderr bytes.Buffer
	cmd := exec.Command("pdftoppm", args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w: %s", page+1, err, strings.TrimSpace(stderr.String()))
	}
	return prefix + ".png", nil
}

func (o *OCR) tesseract(img, config string) (string, error) {
	args := []string{img, "stdout"}
	if config != "" {
		args = append(args, strings.Fields(config)...)
	}

	var out, stderr bytes.Buffer
	cmd := exec.Command("tesseract", args...)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/finance-categorizer/internal/categorize"
	"github.com/insightdelivered/finance-categorizer/internal/models"
	"github.com/insightdelivered/finance-categorizer/internal/statement"
	"github.com/insightdelivered/finance-categorizer/internal/store"
)

const testPage = `TD Canada Trust
STATEMENT DATE: January 31, 2025
OPENING BALANCE 1,210.25
Jan 15 RETAIL PURCHASE STARBUCKS 5.75 1,204.50
CLOSING BALANCE 1,204.50`

func testServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := categorize.NewVendorMap()
	m.Upsert("starbucks", "Dining")
	cat := categorize.New(m)

	proc := &statement.Processor{
		Extract: func(string) ([]string, error) {
			return []string{testPage}, nil
		},
		Categorizer: cat,
		Log:         zerolog.Nop(),
	}

	return &Server{
		Processor:   proc,
		Store:       db,
		Categorizer: cat,
		MaxFileSize: 25 << 20,
		Log:         zerolog.Nop(),
	}
}

func pdfUpload(t *testing.T, field, filename string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test fixture"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	app := testServer(t).Router()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadStatement(t *testing.T) {
	srv := testServer(t)
	app := srv.Router()

	body, ctype := pdfUpload(t, "file", "jan.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)

	resp, err := app.Test(req, int(30*time.Second/time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var doc models.StatementDocument
	decodeBody(t, resp, &doc)
	assert.Equal(t, models.BankTD, doc.Bank)
	assert.Len(t, doc.Transactions, 1)
	assert.Equal(t, "Dining", doc.Transactions[0].Category)

	// Re-uploading the same file for the same month conflicts.
	body, ctype = pdfUpload(t, "file", "jan.pdf")
	req = httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)
	resp, err = app.Test(req, int(30*time.Second/time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	app := testServer(t).Router()

	body, ctype := pdfUpload(t, "file", "notes.txt")
	req := httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRequiresFileField(t *testing.T) {
	app := testServer(t).Router()

	body, ctype := pdfUpload(t, "wrong", "jan.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func uploadFixture(t *testing.T, app interface {
	Test(*http.Request, ...int) (*http.Response, error)
}) models.StatementDocument {
	t.Helper()
	body, ctype := pdfUpload(t, "file", "jan.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)
	resp, err := app.Test(req, int(30*time.Second/time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var doc models.StatementDocument
	decodeBody(t, resp, &doc)
	return doc
}

func TestTransactionsEndpoint(t *testing.T) {
	srv := testServer(t)
	app := srv.Router()
	uploadFixture(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/transactions?category=Dining", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Transactions []models.TransactionRecord `json:"transactions"`
		Count        int                        `json:"count"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, 1, out.Count)
	assert.True(t, out.Transactions[0].Amount.Equal(decimal.RequireFromString("5.75")))
}

func TestUpdateCategoryWithAutoApply(t *testing.T) {
	srv := testServer(t)
	app := srv.Router()
	uploadFixture(t, app)

	txns, err := srv.Store.Transactions(store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)

	payload := `{"category":"Coffee","autoApply":true}`
	req := httptest.NewRequest(http.MethodPut,
		"/api/transactions/"+txns[0].ID+"/category", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, "Coffee", out["category"])
	assert.NotEmpty(t, out["vendor"], "auto-apply must record a vendor mapping")

	// The promoted mapping is persisted.
	m, err := srv.Store.VendorMap()
	require.NoError(t, err)
	_, ok := m.Get(out["vendor"].(string))
	assert.True(t, ok)
}

func TestUpdateCategoryNotFound(t *testing.T) {
	app := testServer(t).Router()

	req := httptest.NewRequest(http.MethodPut,
		"/api/transactions/nope/category", strings.NewReader(`{"category":"X"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVendorMappingEndpoints(t *testing.T) {
	srv := testServer(t)
	app := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/vendor-mappings",
		strings.NewReader(`{"vendor":"Tim Hortons","category":"Dining"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/vendor-mappings", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Mappings []categorize.Entry `json:"mappings"`
	}
	decodeBody(t, resp, &out)
	// The seed mapping plus the new one, insertion order preserved.
	require.Len(t, out.Mappings, 2)
	assert.Equal(t, "starbucks", out.Mappings[0].Vendor)
	assert.Equal(t, "tim hortons", out.Mappings[1].Vendor)
}

func TestVendorMappingImport(t *testing.T) {
	srv := testServer(t)
	app := srv.Router()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "vendors.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(`{"petro-canada":"Gas","loblaws":"Groceries"}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/vendor-mappings/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Imported int `json:"imported"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, 2, out.Imported)

	if _, ok := srv.Categorizer.Vendors().Get("petro-canada"); !ok {
		t.Error("imported mapping missing from the live categorizer")
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := testServer(t)
	app := srv.Router()
	uploadFixture(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Categories []store.CategorySummary `json:"categories"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.Categories, 1)
	assert.Equal(t, "Dining", out.Categories[0].Category)
}

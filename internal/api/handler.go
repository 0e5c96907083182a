// Package api exposes the processing pipeline and the stored ledger over
// HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/finance-categorizer/internal/categorize"
	"github.com/insightdelivered/finance-categorizer/internal/models"
	"github.com/insightdelivered/finance-categorizer/internal/statement"
	"github.com/insightdelivered/finance-categorizer/internal/store"
)

const mb = 1 << 20

// Server holds the handler dependencies. Every field must be set; the
// handlers dereference them without nil checks.
type Server struct {
	Processor   *statement.Processor
	Store       *store.Store
	Categorizer *categorize.Categorizer
	MaxFileSize int // bytes; uploads larger than this are rejected
	Log         zerolog.Logger
}

// Router builds the fiber app with all routes registered.
func (s *Server) Router() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             s.MaxFileSize + mb,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/statements", s.handleUpload)
	api.Get("/transactions", s.handleTransactions)
	api.Put("/transactions/:id/category", s.handleUpdateCategory)
	api.Post("/transactions/recategorize", s.handleRecategorize)
	api.Get("/vendor-mappings", s.handleListVendors)
	api.Post("/vendor-mappings", s.handleAddVendor)
	api.Post("/vendor-mappings/import", s.handleImportVendors)
	api.Get("/summary", s.handleSummary)

	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleUpload accepts a PDF, runs the pipeline, stores the result, and
// returns the processed document including any warnings.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}
	if filepath.Ext(file.Filename) != ".pdf" {
		return fiber.NewError(fiber.StatusBadRequest, "only PDF uploads are accepted")
	}
	if s.MaxFileSize > 0 && file.Size > int64(s.MaxFileSize) {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MB limit", s.MaxFileSize/mb))
	}

	dir, err := os.MkdirTemp("", "fincat-upload-*")
	if err != nil {
		return fmt.Errorf("upload temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Minute)
	defer cancel()

	doc, err := s.Processor.Process(ctx, path)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	if _, err := s.Store.SaveStatement(doc); err != nil {
		if errors.Is(err, store.ErrDuplicateStatement) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (s *Server) handleTransactions(c *fiber.Ctx) error {
	f := store.TransactionFilter{
		MonthYear: c.Query("month"),
		Category:  c.Query("category"),
		Type:      models.TransactionType(c.Query("type")),
		Bank:      models.Bank(c.Query("bank")),
	}
	txns, err := s.Store.Transactions(f)
	if err != nil {
		return err
	}
	if txns == nil {
		txns = []models.TransactionRecord{}
	}
	return c.JSON(fiber.Map{"transactions": txns, "count": len(txns)})
}

type categoryUpdate struct {
	Category  string `json:"category"`
	AutoApply bool   `json:"autoApply"`
}

// handleUpdateCategory reassigns one transaction's category. With autoApply
// the details prefix is promoted to a vendor mapping and every stored
// transaction is recategorized against it.
func (s *Server) handleUpdateCategory(c *fiber.Ctx) error {
	var req categoryUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Category == "" {
		return fiber.NewError(fiber.StatusBadRequest, "category is required")
	}

	details, err := s.Store.UpdateCategory(c.Params("id"), req.Category)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	resp := fiber.Map{"id": c.Params("id"), "category": req.Category}
	if req.AutoApply {
		vendor := s.Categorizer.AutoApply(details, req.Category, nil)
		if vendor != "" {
			if err := s.Store.UpsertVendor(vendor, req.Category); err != nil {
				return err
			}
			changed, err := s.Store.RecategorizeAll(s.Categorizer)
			if err != nil {
				return err
			}
			resp["vendor"] = vendor
			resp["recategorized"] = changed
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleRecategorize(c *fiber.Ctx) error {
	changed, err := s.Store.RecategorizeAll(s.Categorizer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recategorized": changed})
}

func (s *Server) handleListVendors(c *fiber.Ctx) error {
	m := s.Categorizer.Vendors()
	entries := m.Entries()
	if entries == nil {
		entries = []categorize.Entry{}
	}
	return c.JSON(fiber.Map{
		"mappings":         entries,
		"customCategories": m.CustomCategories(),
	})
}

type vendorRequest struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
}

func (s *Server) handleAddVendor(c *fiber.Ctx) error {
	var req vendorRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if categorize.Normalize(req.Vendor) == "" || req.Category == "" {
		return fiber.NewError(fiber.StatusBadRequest, "vendor and category are required")
	}

	s.Categorizer.Vendors().Upsert(req.Vendor, req.Category)
	if err := s.Store.UpsertVendor(req.Vendor, req.Category); err != nil {
		return err
	}

	resp := fiber.Map{"vendor": categorize.Normalize(req.Vendor), "category": req.Category}
	if sugg := s.Categorizer.Suggest(req.Vendor, 3); len(sugg) > 0 {
		resp["similar"] = sugg
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// handleImportVendors merges an uploaded vendor-map JSON file into the live
// mapping and the store.
func (s *Server) handleImportVendors(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}

	dir, err := os.MkdirTemp("", "fincat-vendormap-*")
	if err != nil {
		return fmt.Errorf("import temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "vendors.json")
	if err := c.SaveFile(file, path); err != nil {
		return fmt.Errorf("save vendor map upload: %w", err)
	}

	m, err := categorize.LoadFile(path, s.Log)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	for _, e := range m.Entries() {
		s.Categorizer.Vendors().Upsert(e.Vendor, e.Category)
	}
	for _, name := range m.CustomCategories() {
		s.Categorizer.Vendors().AddCustomCategory(name)
	}

	imported, err := s.Store.ImportVendorMap(m)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"imported": imported})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	summary, err := s.Store.Summary(c.Query("month"))
	if err != nil {
		return err
	}
	if summary == nil {
		summary = []store.CategorySummary{}
	}
	return c.JSON(fiber.Map{"categories": summary})
}

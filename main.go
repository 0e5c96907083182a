// finance-categorizer converts Canadian bank statement PDFs into
// categorized transaction ledgers, as CSV files or through an HTTP API
// backed by SQLite.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/finance-categorizer/internal/api"
	"github.com/insightdelivered/finance-categorizer/internal/balance"
	"github.com/insightdelivered/finance-categorizer/internal/categorize"
	"github.com/insightdelivered/finance-categorizer/internal/config"
	"github.com/insightdelivered/finance-categorizer/internal/logger"
	"github.com/insightdelivered/finance-categorizer/internal/models"
	"github.com/insightdelivered/finance-categorizer/internal/statement"
	"github.com/insightdelivered/finance-categorizer/internal/store"
	"github.com/insightdelivered/finance-categorizer/internal/writer"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		vendorPath = flag.String("vendors", "", "vendor map JSON file (overrides config)")
		outDir     = flag.String("out", ".", "directory for CSV output")
		serve      = flag.Bool("serve", false, "run the HTTP API instead of converting files")
		logLevel   = flag.String("log-level", "info", "log level (trace..error)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] statement.pdf [statement.pdf ...]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.New(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *vendorPath != "" {
		cfg.VendorMap.Path = *vendorPath
	}

	vendors := categorize.NewVendorMap()
	if cfg.VendorMap.Path != "" {
		vendors, err = categorize.LoadFile(cfg.VendorMap.Path, log)
		if err != nil {
			log.Fatal().Err(err).Msg("load vendor map")
		}
	}
	cat := categorize.New(vendors)

	proc := statement.NewProcessor(cat, cfg.OCR.Enabled, cfg.OCR.MaxPages, log)

	if *serve {
		runServer(cfg, proc, cat, log)
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if code := convert(proc, paths, *outDir, cfg.Processing.Workers, log); code != 0 {
		os.Exit(code)
	}
}

func convert(proc *statement.Processor, paths []string, outDir string, workers int, log zerolog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failures := 0
	for _, res := range proc.ProcessBatch(ctx, paths, workers) {
		if res.Err != nil {
			log.Error().Err(res.Err).Str("path", res.Path).Msg("conversion failed")
			failures++
			continue
		}
		for _, w := range res.Doc.Warnings {
			log.Warn().Str("path", res.Path).Str("kind", string(w.Kind)).Msg(w.Message)
		}
		out := csvPath(outDir, res.Path, res.Doc)
		if err := writeCSV(out, res.Doc); err != nil {
			log.Error().Err(err).Str("path", out).Msg("write failed")
			failures++
			continue
		}
		debits, credits := balance.Totals(res.Doc.Transactions)
		log.Info().
			Str("output", out).
			Int("transactions", len(res.Doc.Transactions)).
			Str("bank", string(res.Doc.Bank)).
			Str("debits", debits.StringFixed(2)).
			Str("credits", credits.StringFixed(2)).
			Msg("converted")
	}
	if failures > 0 {
		return 1
	}
	return 0
}

func csvPath(outDir, inPath string, doc *models.StatementDocument) string {
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	if doc.MonthYear != "" {
		base = base + "_" + doc.MonthYear
	}
	return filepath.Join(outDir, base+".csv")
}

func writeCSV(path string, doc *models.StatementDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writer.WriteDocumentCSV(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runServer(cfg *config.Config, proc *statement.Processor, cat *categorize.Categorizer, log zerolog.Logger) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	// Stored mappings take precedence; merge in any file-based ones the
	// store has not seen yet.
	stored, err := db.VendorMap()
	if err != nil {
		log.Fatal().Err(err).Msg("load stored vendor map")
	}
	if _, err := db.ImportVendorMap(cat.Vendors()); err != nil {
		log.Fatal().Err(err).Msg("persist vendor map")
	}
	for _, e := range cat.Vendors().Entries() {
		stored.Upsert(e.Vendor, e.Category)
	}
	*cat = *categorize.New(stored)

	srv := &api.Server{
		Processor:   proc,
		Store:       db,
		Categorizer: cat,
		MaxFileSize: cfg.Processing.MaxFileSizeMB << 20,
		Log:         log,
	}
	app := srv.Router()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		app.Shutdown()
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("api listening")
	if err := app.Listen(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// Package store persists processed statements, their transactions, and the
// vendor mapping to a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/finance-categorizer/internal/categorize"
	"github.com/insightdelivered/finance-categorizer/internal/models"
)

// ErrDuplicateStatement is returned when a statement with the same source
// filename and month has been ingested before.
var ErrDuplicateStatement = errors.New("statement already ingested")

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS statements (
	id              TEXT PRIMARY KEY,
	filename        TEXT NOT NULL,
	month_year      TEXT NOT NULL,
	bank            TEXT NOT NULL,
	statement_type  TEXT NOT NULL,
	opening_balance TEXT NOT NULL,
	closing_balance TEXT NOT NULL,
	ingested_at     TIMESTAMP NOT NULL,
	UNIQUE (filename, month_year)
);

CREATE TABLE IF NOT EXISTS transactions (
	id             TEXT PRIMARY KEY,
	statement_id   TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
	txn_date       TIMESTAMP NOT NULL,
	details        TEXT NOT NULL,
	amount         TEXT NOT NULL,
	txn_type       TEXT NOT NULL,
	category       TEXT NOT NULL,
	bank           TEXT NOT NULL,
	statement_type TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_statement ON transactions(statement_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(txn_date);

-- rowid preserves insertion order, which vendor matching depends on.
CREATE TABLE IF NOT EXISTS vendor_mappings (
	vendor   TEXT PRIMARY KEY,
	category TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_categories (
	name TEXT PRIMARY KEY
);
`

// Store wraps the SQLite handle. Safe for concurrent use; database/sql
// serializes access to the single connection sqlite3 allows for writes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StatementExists reports whether a statement from the same file and month
// was already ingested.
func (s *Store) StatementExists(filename, monthYear string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM statements WHERE filename = ? AND month_year = ?`,
		filename, monthYear,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check statement: %w", err)
	}
	return n > 0, nil
}

// SaveStatement persists a processed document and all its transactions in
// one transaction. Returns ErrDuplicateStatement if the (filename, month)
// pair is already present.
func (s *Store) SaveStatement(doc *models.StatementDocument) (statementID string, err error) {
	exists, err := s.StatementExists(doc.Source, doc.MonthYear)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%q %s: %w", doc.Source, doc.MonthYear, ErrDuplicateStatement)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	statementID = uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO statements
		 (id, filename, month_year, bank, statement_type, opening_balance, closing_balance, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		statementID, doc.Source, doc.MonthYear, string(doc.Bank), string(doc.StatementType),
		doc.Opening.String(), doc.Closing.String(), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert statement: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO transactions
		 (id, statement_id, txn_date, details, amount, txn_type, category, bank, statement_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	for i := range doc.Transactions {
		t := &doc.Transactions[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		_, err = stmt.Exec(
			t.ID, statementID, t.Date, t.Details, t.Amount.String(),
			string(t.Type), t.Category, string(t.Bank), string(t.StatementType),
		)
		if err != nil {
			return "", fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return statementID, nil
}

// TransactionFilter narrows Transactions queries. Zero-valued fields are
// ignored.
type TransactionFilter struct {
	MonthYear string
	Category  string
	Type      models.TransactionType
	Bank      models.Bank
}

// Transactions returns stored transactions, newest date first, optionally
// filtered.
func (s *Store) Transactions(f TransactionFilter) ([]models.TransactionRecord, error) {
	query := `SELECT t.id, t.txn_date, t.details, t.amount, t.txn_type, t.category, t.bank, t.statement_type
		FROM transactions t
		JOIN statements st ON st.id = t.statement_id
		WHERE 1=1`
	var args []any
	if f.MonthYear != "" {
		query += ` AND st.month_year = ?`
		args = append(args, f.MonthYear)
	}
	if f.Category != "" {
		query += ` AND t.category = ?`
		args = append(args, f.Category)
	}
	if f.Type != "" {
		query += ` AND t.txn_type = ?`
		args = append(args, string(f.Type))
	}
	if f.Bank != "" {
		query += ` AND t.bank = ?`
		args = append(args, string(f.Bank))
	}
	query += ` ORDER BY t.txn_date DESC, t.rowid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// UpdateCategory sets one transaction's category and returns its details
// line, which callers feed to the auto-apply flow.
func (s *Store) UpdateCategory(id, category string) (details string, err error) {
	err = s.db.QueryRow(`SELECT details FROM transactions WHERE id = ?`, id).Scan(&details)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("transaction %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup transaction: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE transactions SET category = ? WHERE id = ?`, category, id); err != nil {
		return "", fmt.Errorf("update category: %w", err)
	}
	return details, nil
}

// RecategorizeAll reruns the categorizer over every stored transaction and
// returns how many rows changed.
func (s *Store) RecategorizeAll(c *categorize.Categorizer) (changed int, err error) {
	rows, err := s.db.Query(`SELECT id, details, category FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("query transactions: %w", err)
	}
	type update struct{ id, category string }
	var updates []update
	for rows.Next() {
		var id, details, current string
		if err := rows.Scan(&id, &details, &current); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan transaction: %w", err)
		}
		if next := c.Categorize(details); next != current {
			updates = append(updates, update{id, next})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate transactions: %w", err)
	}

	for _, u := range updates {
		if _, err := s.db.Exec(`UPDATE transactions SET category = ? WHERE id = ?`, u.category, u.id); err != nil {
			return changed, fmt.Errorf("update category: %w", err)
		}
		changed++
	}
	return changed, nil
}

// VendorMap loads the persisted mapping in insertion (rowid) order.
func (s *Store) VendorMap() (*categorize.VendorMap, error) {
	m := categorize.NewVendorMap()

	rows, err := s.db.Query(`SELECT vendor, category FROM vendor_mappings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query vendor mappings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var vendor, category string
		if err := rows.Scan(&vendor, &category); err != nil {
			return nil, fmt.Errorf("scan vendor mapping: %w", err)
		}
		m.Upsert(vendor, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor mappings: %w", err)
	}

	cats, err := s.db.Query(`SELECT name FROM custom_categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query custom categories: %w", err)
	}
	defer cats.Close()
	for cats.Next() {
		var name string
		if err := cats.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan custom category: %w", err)
		}
		m.AddCustomCategory(name)
	}
	return m, cats.Err()
}

// UpsertVendor persists one mapping. New vendors append; existing ones keep
// their rowid, so match precedence is stable across edits.
func (s *Store) UpsertVendor(vendor, category string) error {
	vendor = categorize.Normalize(vendor)
	if vendor == "" || vendor == categorize.SentinelCustomCategories {
		return fmt.Errorf("invalid vendor key %q", vendor)
	}
	_, err := s.db.Exec(
		`INSERT INTO vendor_mappings (vendor, category) VALUES (?, ?)
		 ON CONFLICT(vendor) DO UPDATE SET category = excluded.category`,
		vendor, category,
	)
	if err != nil {
		return fmt.Errorf("upsert vendor: %w", err)
	}
	return nil
}

// ImportVendorMap merges a loaded mapping into the store, preserving its
// insertion order for keys not already present.
func (s *Store) ImportVendorMap(m *categorize.VendorMap) (imported int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, e := range m.Entries() {
		if _, err = tx.Exec(
			`INSERT INTO vendor_mappings (vendor, category) VALUES (?, ?)
			 ON CONFLICT(vendor) DO UPDATE SET category = excluded.category`,
			e.Vendor, e.Category,
		); err != nil {
			return 0, fmt.Errorf("import vendor %q: %w", e.Vendor, err)
		}
		imported++
	}
	for _, name := range m.CustomCategories() {
		if _, err = tx.Exec(
			`INSERT INTO custom_categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name,
		); err != nil {
			return 0, fmt.Errorf("import custom category %q: %w", name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return imported, nil
}

// CategorySummary is one category's aggregate for the summary endpoint.
type CategorySummary struct {
	Category string          `json:"category"`
	Debits   decimal.Decimal `json:"debits"`
	Credits  decimal.Decimal `json:"credits"`
	Count    int             `json:"count"`
}

// Summary aggregates stored transactions by category. MonthYear narrows to
// one statement month when non-empty.
func (s *Store) Summary(monthYear string) ([]CategorySummary, error) {
	f := TransactionFilter{MonthYear: monthYear}
	txns, err := s.Transactions(f)
	if err != nil {
		return nil, err
	}

	// Aggregate in Go so amounts stay exact decimals.
	order := []string{}
	byCat := map[string]*CategorySummary{}
	for _, t := range txns {
		cs, ok := byCat[t.Category]
		if !ok {
			cs = &CategorySummary{Category: t.Category}
			byCat[t.Category] = cs
			order = append(order, t.Category)
		}
		if t.Type == models.Debit {
			cs.Debits = cs.Debits.Add(t.Amount)
		} else {
			cs.Credits = cs.Credits.Add(t.Amount)
		}
		cs.Count++
	}

	out := make([]CategorySummary, 0, len(order))
	for _, cat := range order {
		out = append(out, *byCat[cat])
	}
	return out, nil
}

func scanTransactions(rows *sql.Rows) ([]models.TransactionRecord, error) {
	var out []models.TransactionRecord
	for rows.Next() {
		var (
			t       models.TransactionRecord
			amount  string
			txnType string
			bank    string
			stype   string
		)
		if err := rows.Scan(&t.ID, &t.Date, &t.Details, &amount, &txnType, &t.Category, &bank, &stype); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("stored amount %q: %w", amount, err)
		}
		t.Amount = amt
		t.Type = models.TransactionType(txnType)
		t.Bank = models.Bank(bank)
		t.StatementType = models.StatementType(stype)
		out = append(out, t)
	}
	return out, rows.Err()
}

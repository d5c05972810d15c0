// Package store persists indexed documents in SQLite.
//
// Each Save replaces every row of the document in one transaction, so
// readers observe either the previous index or the new one.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/reconcile"
	"github.com/dgallion1/tocindex/internal/report"
	"github.com/dgallion1/tocindex/internal/segment"
)

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id       TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	filename     TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	total_pages  INTEGER NOT NULL,
	toc_pages    TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS sections (
	doc_id     TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	section_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	page       INTEGER NOT NULL,
	tags       TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);

CREATE TABLE IF NOT EXISTS records (
	doc_id     TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	section_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	tags       TEXT NOT NULL,
	content    TEXT NOT NULL,
	page_start INTEGER NOT NULL,
	page_end   INTEGER NOT NULL,
	word_count INTEGER NOT NULL,
	tables     TEXT NOT NULL,
	figures    TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);

CREATE TABLE IF NOT EXISTS reports (
	doc_id     TEXT PRIMARY KEY REFERENCES documents(doc_id) ON DELETE CASCADE,
	report     TEXT NOT NULL,
	summary    TEXT NOT NULL,
	references_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS unmatched (
	doc_id TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	line   TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);
`

// Document is the stored metadata of one indexed document.
type Document struct {
	ID           string    `json:"doc_id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename"`
	ContentHash  string    `json:"content_hash"`
	TotalPages   int       `json:"total_pages"`
	ListingPages []int     `json:"toc_pages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Index is everything saved for one document.
type Index struct {
	Document   Document
	Entries    []doctree.SectionEntry
	Records    []doctree.ContentRecord
	Unmatched  []string
	References *segment.Accumulator
	Report     *reconcile.Report
	Summary    *report.Summary
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes idx, replacing any previous version of the same document.
// The original creation time is kept.
func (s *Store) Save(ctx context.Context, idx *Index) (err error) {
	d := idx.Document
	if d.ID == "" {
		return errors.New("store: document id is required")
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var created string
	switch err = tx.QueryRowContext(ctx, `SELECT created_at FROM documents WHERE doc_id = ?`, d.ID).Scan(&created); {
	case errors.Is(err, sql.ErrNoRows):
		created = d.CreatedAt.Format(time.RFC3339Nano)
	case err != nil:
		return fmt.Errorf("store: lookup %s: %w", d.ID, err)
	}
	if _, err = deleteDocument(ctx, tx, d.ID); err != nil {
		return fmt.Errorf("store: replace %s: %w", d.ID, err)
	}

	pages, err := marshal(orEmpty(d.ListingPages))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (doc_id, title, filename, content_hash, total_pages, toc_pages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Filename, d.ContentHash, d.TotalPages, pages, created, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: insert document: %w", err)
	}

	for i, e := range idx.Entries {
		tags, err := marshal(orEmpty(e.Tags))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (doc_id, seq, section_id, title, page, tags) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, i, e.Identifier, e.Title, e.Page, tags); err != nil {
			return fmt.Errorf("store: insert section %s: %w", e.Identifier, err)
		}
	}

	for i, r := range idx.Records {
		tags, err := marshal(orEmpty(r.Tags))
		if err != nil {
			return err
		}
		tables, err := marshal(orEmpty(r.Tables))
		if err != nil {
			return err
		}
		figures, err := marshal(orEmpty(r.Figures))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (doc_id, seq, section_id, title, tags, content, page_start, page_end, word_count, tables, figures)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i, r.Identifier, r.Title, tags, r.Body, r.PageStart, r.PageEnd, r.WordCount, tables, figures); err != nil {
			return fmt.Errorf("store: insert record %s: %w", r.Identifier, err)
		}
	}

	for i, line := range idx.Unmatched {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unmatched (doc_id, seq, line) VALUES (?, ?, ?)`, d.ID, i, line); err != nil {
			return fmt.Errorf("store: insert unmatched line: %w", err)
		}
	}

	rep, err := marshal(idx.Report)
	if err != nil {
		return err
	}
	sum, err := marshal(idx.Summary)
	if err != nil {
		return err
	}
	refs := idx.References
	if refs == nil {
		refs = &segment.Accumulator{Tables: []doctree.Reference{}, Figures: []doctree.Reference{}}
	}
	refsJSON, err := marshal(refs)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO reports (doc_id, report, summary, references_json) VALUES (?, ?, ?, ?)`,
		d.ID, rep, sum, refsJSON); err != nil {
		return fmt.Errorf("store: insert report: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Get returns the metadata of one document.
func (s *Store) Get(ctx context.Context, docID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc_id, title, filename, content_hash, total_pages, toc_pages, created_at, updated_at
		 FROM documents WHERE doc_id = ?`, docID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// List returns every document, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, title, filename, content_hash, total_pages, toc_pages, created_at, updated_at
		 FROM documents ORDER BY updated_at DESC, doc_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// FindByHash returns the id of a document with the given content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_id FROM documents WHERE content_hash = ? ORDER BY created_at LIMIT 1`, hash).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("store: find by hash: %w", err)
	}
	return id, true, nil
}

// Delete removes a document and all of its rows.
func (s *Store) Delete(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	n, err := deleteDocument(ctx, tx, docID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: delete %s: %w", docID, err)
	}
	if n == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// deleteDocument clears child tables first so it does not depend on
// foreign key enforcement. It returns the number of document rows removed.
func deleteDocument(ctx context.Context, tx *sql.Tx, docID string) (int64, error) {
	for _, table := range []string{"sections", "records", "reports", "unmatched"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE doc_id = ?`, docID); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Entries returns the listing entries in scan order.
func (s *Store) Entries(ctx context.Context, docID string) ([]doctree.SectionEntry, error) {
	d, err := s.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, title, page, tags FROM sections WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: sections: %w", err)
	}
	defer rows.Close()

	out := []doctree.SectionEntry{}
	for rows.Next() {
		var id, title, tags string
		var page int
		if err := rows.Scan(&id, &title, &page, &tags); err != nil {
			return nil, fmt.Errorf("store: scan section: %w", err)
		}
		e := doctree.NewSectionEntry(id, title, page, nil)
		e.DocTitle = d.Title
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("store: section %s tags: %w", id, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Records returns the content records in scan order.
func (s *Store) Records(ctx context.Context, docID string) ([]doctree.ContentRecord, error) {
	d, err := s.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, title, tags, content, page_start, page_end, word_count, tables, figures
		 FROM records WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: records: %w", err)
	}
	defer rows.Close()

	out := []doctree.ContentRecord{}
	for rows.Next() {
		var id, title, tags, body, tables, figures string
		var start, end, words int
		if err := rows.Scan(&id, &title, &tags, &body, &start, &end, &words, &tables, &figures); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		r := doctree.ContentRecord{
			SectionEntry: doctree.NewSectionEntry(id, title, start, nil),
			Body:         body,
			PageStart:    start,
			PageEnd:      end,
			WordCount:    words,
		}
		r.DocTitle = d.Title
		for _, f := range []struct {
			raw string
			dst any
		}{{tags, &r.Tags}, {tables, &r.Tables}, {figures, &r.Figures}} {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return nil, fmt.Errorf("store: record %s: %w", id, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Listing rebuilds the listing tree of a document.
func (s *Store) Listing(ctx context.Context, docID string) (*doctree.Tree, error) {
	entries, err := s.Entries(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doctree.NewTree(entries), nil
}

// Content rebuilds the content tree of a document.
func (s *Store) Content(ctx context.Context, docID string) (*doctree.Tree, error) {
	records, err := s.Records(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doctree.NewContentTree(records), nil
}

// Unmatched returns the listing lines no pattern accepted.
func (s *Store) Unmatched(ctx context.Context, docID string) ([]string, error) {
	if _, err := s.Get(ctx, docID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM unmatched WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: unmatched: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("store: scan unmatched: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Report returns the stored reconciliation report.
func (s *Store) Report(ctx context.Context, docID string) (*reconcile.Report, error) {
	var out reconcile.Report
	if err := s.reportColumn(ctx, docID, "report", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary returns the stored document summary.
func (s *Store) Summary(ctx context.Context, docID string) (*report.Summary, error) {
	var out report.Summary
	if err := s.reportColumn(ctx, docID, "summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// References returns the document-wide table and figure references.
func (s *Store) References(ctx context.Context, docID string) (*segment.Accumulator, error) {
	var out segment.Accumulator
	if err := s.reportColumn(ctx, docID, "references_json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) reportColumn(ctx context.Context, docID, column string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT `+column+` FROM reports WHERE doc_id = ?`, docID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("store: %s: %w", column, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("store: decode %s: %w", column, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var d Document
	var pages, created, updated string
	if err := row.Scan(&d.ID, &d.Title, &d.Filename, &d.ContentHash, &d.TotalPages, &pages, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan document: %w", err)
	}
	if err := json.Unmarshal([]byte(pages), &d.ListingPages); err != nil {
		return nil, fmt.Errorf("store: document %s pages: %w", d.ID, err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &d, nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: marshal: %w", err)
	}
	return string(b), nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

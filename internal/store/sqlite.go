package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteDocuments keeps documents in a single sqlite table.
type SQLiteDocuments struct {
	DB *sql.DB
}

var _ Documents = (*SQLiteDocuments)(nil)

func NewSQLiteDocuments(dbPath string) (*SQLiteDocuments, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; serialising connections avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			rev TEXT NOT NULL,
			type TEXT NOT NULL,
			business_id TEXT NOT NULL,
			body TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_type_business
			ON documents (type, business_id);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLiteDocuments{DB: db}, nil
}

func (s *SQLiteDocuments) Find(ctx context.Context, sel Selector) (*Document, error) {
	query := `SELECT id, rev, type, business_id, body FROM documents WHERE type = ? AND business_id = ? LIMIT 1`
	return s.scanOne(s.DB.QueryRowContext(ctx, query, sel.Type, sel.BusinessID))
}

func (s *SQLiteDocuments) Get(ctx context.Context, id string) (*Document, error) {
	query := `SELECT id, rev, type, business_id, body FROM documents WHERE id = ?`
	return s.scanOne(s.DB.QueryRowContext(ctx, query, id))
}

func (s *SQLiteDocuments) Create(ctx context.Context, doc Document) (*Document, error) {
	doc.Rev = nextRev("")
	query := `INSERT INTO documents (id, rev, type, business_id, body) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.DB.ExecContext(ctx, query, doc.ID, doc.Rev, doc.Type, doc.BusinessID, string(doc.Body)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("create %s: %w", doc.ID, ErrExists)
		}
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteDocuments) Put(ctx context.Context, doc Document) (*Document, error) {
	newRev := nextRev(doc.Rev)
	query := `UPDATE documents SET rev = ?, body = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND rev = ?`
	res, err := s.DB.ExecContext(ctx, query, newRev, string(doc.Body), doc.ID, doc.Rev)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Either the document is gone or someone else wrote first.
		if _, err := s.Get(ctx, doc.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("put %s at %s: %w", doc.ID, doc.Rev, ErrVersionConflict)
	}
	doc.Rev = newRev
	return &doc, nil
}

func (s *SQLiteDocuments) Close() error {
	return s.DB.Close()
}

func (s *SQLiteDocuments) scanOne(row *sql.Row) (*Document, error) {
	var doc Document
	var body string
	if err := row.Scan(&doc.ID, &doc.Rev, &doc.Type, &doc.BusinessID, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc.Body = []byte(body)
	return &doc, nil
}

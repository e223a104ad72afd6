package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS pdf_entries (
	id           TEXT PRIMARY KEY,
	upload_index INTEGER NOT NULL,
	payload      TEXT NOT NULL,
	updated_at   TIMESTAMP NOT NULL
)`

// SQLiteStore persists entries in a SQLite table keyed by PDF id.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at dsn. Use ":memory:" for
// a throwaway store.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadAll returns every stored entry in upload order.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*PdfEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM pdf_entries ORDER BY upload_index, id`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []*PdfEntry
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, decodeEntry(id, []byte(payload)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// Save upserts one entry.
func (s *SQLiteStore) Save(ctx context.Context, e *PdfEntry) error {
	payload, err := encodeEntry(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pdf_entries (id, upload_index, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			upload_index = excluded.upload_index,
			payload      = excluded.payload,
			updated_at   = excluded.updated_at`,
		e.ID, e.UploadIndex, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save entry %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes one entry.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pdf_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Package store is the system of record for snippets and their ratings.
// Snippet metadata and per-user ratings are persisted in SQLite; the search
// side only ever reads them through batched lookups.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// maxBatchParams keeps IN (...) lists under SQLite's host parameter limit.
const maxBatchParams = 500

// Rating bounds accepted by AddRating.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("store is closed")

// ErrInvalidRating is returned when a rating is outside [MinRating, MaxRating].
var ErrInvalidRating = errors.New("rating out of range")

// Snippet is the authoritative record for one snippet.
type Snippet struct {
	ID          string
	Owner       string
	DisplayName string // empty when the owner never set one
	Description string
	Readme      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Rating is the aggregate rating of one snippet.
type Rating struct {
	SnippetID string
	Average   float64
	Count     int
}

// SnippetStore reads and writes snippet records.
type SnippetStore interface {
	SaveSnippet(ctx context.Context, s *Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
	// GetSnippets returns the records that exist among ids, in no particular order.
	// Unknown ids are simply absent.
	GetSnippets(ctx context.Context, ids []string) ([]*Snippet, error)
	ListSnippets(ctx context.Context) ([]*Snippet, error)
	Close() error
}

// RatingStore records ratings and computes averages.
type RatingStore interface {
	AddRating(ctx context.Context, snippetID, userID string, value float64) error
	// AverageRatings returns one aggregate per rated id; unrated ids are absent.
	AverageRatings(ctx context.Context, ids []string) ([]*Rating, error)
}

// SQLiteStore implements SnippetStore and RatingStore on a single SQLite file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var (
	_ SnippetStore = (*SQLiteStore)(nil)
	_ RatingStore  = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the store at path.
// If path is empty, an in-memory database is used.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Debug("snippet_store_opened", slog.String("path", dsn))
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS snippets (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		readme TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- One rating per user per snippet; deleting a snippet drops its ratings.
	CREATE TABLE IF NOT EXISTS ratings (
		snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		value REAL NOT NULL,
		rated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (snippet_id, user_id)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSnippet inserts or updates a snippet. CreatedAt is preserved on update.
func (s *SQLiteStore) SaveSnippet(ctx context.Context, sn *Snippet) error {
	if sn == nil || strings.TrimSpace(sn.ID) == "" {
		return fmt.Errorf("snippet id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	now := time.Now().UTC()
	if sn.CreatedAt.IsZero() {
		sn.CreatedAt = now
	}
	sn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snippets (id, owner, display_name, description, readme, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			display_name = excluded.display_name,
			description = excluded.description,
			readme = excluded.readme,
			updated_at = excluded.updated_at
	`, sn.ID, sn.Owner, sn.DisplayName, sn.Description, sn.Readme, sn.CreatedAt, sn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save snippet %s: %w", sn.ID, err)
	}
	return nil
}

// DeleteSnippet removes a snippet and its ratings. Deleting a missing id is not an error.
func (s *SQLiteStore) DeleteSnippet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete snippet %s: %w", id, err)
	}
	return nil
}

// GetSnippets is the batched system-of-record lookup.
func (s *SQLiteStore) GetSnippets(ctx context.Context, ids []string) ([]*Snippet, error) {
	if len(ids) == 0 {
		return []*Snippet{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	results := make([]*Snippet, 0, len(ids))
	for _, batch := range batches(uniqueIDs(ids), maxBatchParams) {
		query := `SELECT id, owner, display_name, description, readme, created_at, updated_at
			FROM snippets WHERE id IN (` + placeholders(len(batch)) + `)`
		rows, err := s.db.QueryContext(ctx, query, toArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("query snippets: %w", err)
		}
		found, err := scanSnippets(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, found...)
	}
	return results, nil
}

// ListSnippets returns every snippet ordered by id.
func (s *SQLiteStore) ListSnippets(ctx context.Context) ([]*Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, owner, display_name, description, readme, created_at, updated_at
		FROM snippets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	return scanSnippets(rows)
}

// AddRating records (or replaces) a user's rating for a snippet.
func (s *SQLiteStore) AddRating(ctx context.Context, snippetID, userID string, value float64) error {
	if value < MinRating || value > MaxRating {
		return fmt.Errorf("%w: %.1f not in [%.0f, %.0f]", ErrInvalidRating, value, MinRating, MaxRating)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ratings (snippet_id, user_id, value, rated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(snippet_id, user_id) DO UPDATE SET
			value = excluded.value,
			rated_at = excluded.rated_at
	`, snippetID, userID, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add rating for %s: %w", snippetID, err)
	}
	return nil
}

// AverageRatings computes averages for the unique set of ids in one pass per batch.
func (s *SQLiteStore) AverageRatings(ctx context.Context, ids []string) ([]*Rating, error) {
	if len(ids) == 0 {
		return []*Rating{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	results := make([]*Rating, 0, len(ids))
	for _, batch := range batches(uniqueIDs(ids), maxBatchParams) {
		query := `SELECT snippet_id, AVG(value), COUNT(*) FROM ratings
			WHERE snippet_id IN (` + placeholders(len(batch)) + `)
			GROUP BY snippet_id`
		rows, err := s.db.QueryContext(ctx, query, toArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("query ratings: %w", err)
		}
		for rows.Next() {
			r := &Rating{}
			if err := rows.Scan(&r.SnippetID, &r.Average, &r.Count); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan rating: %w", err)
			}
			results = append(results, r)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate ratings: %w", err)
		}
	}
	return results, nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close releases the database. Subsequent calls are no-ops.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanSnippets(rows *sql.Rows) ([]*Snippet, error) {
	defer rows.Close()

	var out []*Snippet
	for rows.Next() {
		sn := &Snippet{}
		if err := rows.Scan(&sn.ID, &sn.Owner, &sn.DisplayName, &sn.Description, &sn.Readme,
			&sn.CreatedAt, &sn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snippets: %w", err)
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func batches(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// maxZeroResultRows bounds the persisted zero-result log.
const maxZeroResultRows = 200

// SQLiteStore implements Store on a database shared with the snippet store.
type SQLiteStore struct {
	db *sql.DB
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates the telemetry tables on db if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// InitSchema creates the telemetry tables if they don't exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_daily_stats (
		date TEXT NOT NULL,
		dimension TEXT NOT NULL,
		label TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, dimension, label)
	);

	CREATE TABLE IF NOT EXISTS search_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_search_terms_count ON search_terms(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_searches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		term TEXT NOT NULL,
		searched_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

const (
	dimensionKind    = "kind"
	dimensionLatency = "latency"
)

// AddDailyCounts implements Store.
func (s *SQLiteStore) AddDailyCounts(date string, kinds map[SearchKind]int64, latencies map[LatencyBucket]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO search_daily_stats (date, dimension, label, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, dimension, label) DO UPDATE SET count = count + excluded.count
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for k, n := range kinds {
		if _, err := stmt.Exec(date, dimensionKind, string(k), n); err != nil {
			return fmt.Errorf("add kind count: %w", err)
		}
	}
	for b, n := range latencies {
		if _, err := stmt.Exec(date, dimensionLatency, string(b), n); err != nil {
			return fmt.Errorf("add latency count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// KindCounts sums kind counts over an inclusive date range.
func (s *SQLiteStore) KindCounts(from, to string) (map[SearchKind]int64, error) {
	counts := make(map[SearchKind]int64)
	err := s.sumDimension(dimensionKind, from, to, func(label string, n int64) {
		counts[SearchKind(label)] = n
	})
	return counts, err
}

// LatencyCounts sums latency buckets over an inclusive date range.
func (s *SQLiteStore) LatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	counts := make(map[LatencyBucket]int64)
	err := s.sumDimension(dimensionLatency, from, to, func(label string, n int64) {
		counts[LatencyBucket(label)] = n
	})
	return counts, err
}

func (s *SQLiteStore) sumDimension(dimension, from, to string, fn func(label string, n int64)) error {
	rows, err := s.db.Query(`
		SELECT label, SUM(count)
		FROM search_daily_stats
		WHERE dimension = ? AND date >= ? AND date <= ?
		GROUP BY label
	`, dimension, from, to)
	if err != nil {
		return fmt.Errorf("query %s counts: %w", dimension, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		fn(label, n)
	}
	return rows.Err()
}

// AddTermCounts implements Store.
func (s *SQLiteStore) AddTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO search_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for term, n := range terms {
		if _, err := stmt.Exec(term, n); err != nil {
			return fmt.Errorf("add term count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TopTerms implements Store.
func (s *SQLiteStore) TopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count FROM search_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultTerms implements Store. The log keeps the newest rows only.
func (s *SQLiteStore) AddZeroResultTerms(terms []string, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, term := range terms {
		if _, err := tx.Exec(`INSERT INTO zero_result_searches (term, searched_at) VALUES (?, ?)`, term, at.UTC()); err != nil {
			return fmt.Errorf("insert zero-result term: %w", err)
		}
	}

	if _, err := tx.Exec(`
		DELETE FROM zero_result_searches
		WHERE id NOT IN (
			SELECT id FROM zero_result_searches ORDER BY id DESC LIMIT ?
		)
	`, maxZeroResultRows); err != nil {
		return fmt.Errorf("trim zero-result terms: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RecentZeroResultTerms implements Store.
func (s *SQLiteStore) RecentZeroResultTerms(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT term FROM zero_result_searches
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles persistence of the daily usage ledger, the request log and
// search results using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new SQLite-backed store at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// init creates the necessary tables if they don't exist
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_usage (
			usage_date     TEXT PRIMARY KEY,
			request_count  INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS api_requests (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			query_text        TEXT NOT NULL,
			num_results       INTEGER NOT NULL,
			start_index       INTEGER NOT NULL,
			status            TEXT NOT NULL,
			response_time_ms  INTEGER,
			error_message     TEXT,
			created_at        TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS search_results (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id           INTEGER NOT NULL,
			title                TEXT NOT NULL DEFAULT '',
			link                 TEXT NOT NULL DEFAULT '',
			snippet              TEXT NOT NULL DEFAULT '',
			display_link         TEXT NOT NULL DEFAULT '',
			formatted_url        TEXT NOT NULL DEFAULT '',
			html_title           TEXT NOT NULL DEFAULT '',
			html_snippet         TEXT NOT NULL DEFAULT '',
			cache_id             TEXT NOT NULL DEFAULT '',
			page_map             TEXT,
			position_in_results  INTEGER NOT NULL,
			FOREIGN KEY (request_id) REFERENCES api_requests(id),
			UNIQUE(request_id, position_in_results)
		);

		CREATE INDEX IF NOT EXISTS idx_requests_created ON api_requests(created_at);
		CREATE INDEX IF NOT EXISTS idx_requests_status ON api_requests(status);
		CREATE INDEX IF NOT EXISTS idx_results_request ON search_results(request_id);
	`)
	return err
}

// dateKey formats a day as the ledger's primary key.
func dateKey(day time.Time) string {
	return day.Format("2006-01-02")
}

// DailyRequestCount returns the number of ledger-counted API calls for the
// given day, or 0 when no row exists. Storage errors degrade to 0 so a
// database outage never blocks the caller; the error is logged instead.
// Note this also means an outage silently permits exceeding the real quota.
func (s *Store) DailyRequestCount(day time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT request_count FROM daily_usage WHERE usage_date = ?",
		dateKey(day),
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		log.Printf("[STORE] Failed to read daily request count for %s: %v", dateKey(day), err)
		return 0
	}
	return count
}

// IncrementDailyUsage adds one call to the ledger for the given day,
// creating the row on first use. The upsert is a single statement, so the
// increment stays atomic under concurrent callers.
func (s *Store) IncrementDailyUsage(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO daily_usage (usage_date, request_count, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(usage_date) DO UPDATE SET
			request_count = request_count + 1,
			updated_at = excluded.updated_at
	`, dateKey(day), now, now)
	if err != nil {
		return fmt.Errorf("failed to increment daily usage: %w", err)
	}
	return nil
}

// LogRequest records one call attempt and returns the new row id.
// responseTimeMS may be nil for attempts rejected before any network call.
func (s *Store) LogRequest(query string, numResults, startIndex int, status string, responseTimeMS *int, errorMessage string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}

	result, err := s.db.Exec(`
		INSERT INTO api_requests (query_text, num_results, start_index, status, response_time_ms, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, query, numResults, startIndex, status, responseTimeMS, errMsg, time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to log api request: %w", err)
	}

	return result.LastInsertId()
}

// SaveResults stores a request's result items in returned order, assigning
// 1-based positions. The batch is a single transaction so a partial page
// never persists.
func (s *Store) SaveResults(requestID int64, items []ResultItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO search_results
			(request_id, title, link, snippet, display_link, formatted_url,
			 html_title, html_snippet, cache_id, page_map, position_in_results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		_, err := stmt.Exec(
			requestID, item.Title, item.Link, item.Snippet, item.DisplayLink,
			item.FormattedURL, item.HTMLTitle, item.HTMLSnippet, item.CacheID,
			item.PageMap, i+1,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert result %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// RecentRequests returns up to limit request records, newest first.
func (s *Store) RecentRequests(limit int) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, query_text, num_results, start_index, status, response_time_ms, error_message, created_at
		FROM api_requests
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// RequestByID returns a single request record.
func (s *Store) RequestByID(id int64) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, query_text, num_results, start_index, status, response_time_ms, error_message, created_at
		FROM api_requests
		WHERE id = ?
	`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ResultsByRequestID returns a request's result items ordered by position.
func (s *Store) ResultsByRequestID(requestID int64) ([]ResultItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, request_id, title, link, snippet, display_link, formatted_url,
		       html_title, html_snippet, cache_id, page_map, position_in_results
		FROM search_results
		WHERE request_id = ?
		ORDER BY position_in_results ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query search results: %w", err)
	}
	defer rows.Close()

	var items []ResultItem
	for rows.Next() {
		var item ResultItem
		var pageMap sql.NullString
		err := rows.Scan(
			&item.ID, &item.RequestID, &item.Title, &item.Link, &item.Snippet,
			&item.DisplayLink, &item.FormattedURL, &item.HTMLTitle,
			&item.HTMLSnippet, &item.CacheID, &pageMap, &item.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		item.PageMap = pageMap.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner interface for both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (Request, error) {
	var (
		req            Request
		responseTimeMS sql.NullInt64
		errorMessage   sql.NullString
		createdAt      string
	)

	err := sc.Scan(
		&req.ID, &req.Query, &req.NumResults, &req.StartIndex, &req.Status,
		&responseTimeMS, &errorMessage, &createdAt,
	)
	if err != nil {
		return req, err
	}

	if responseTimeMS.Valid {
		ms := int(responseTimeMS.Int64)
		req.ResponseTimeMS = &ms
	}
	req.ErrorMessage = errorMessage.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		req.CreatedAt = t
	}

	return req, nil
}

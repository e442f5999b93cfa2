package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// QueryOpts filters journal reads.
type QueryOpts struct {
	// Type restricts results to one event type (TypeSend, TypeLearned, ...).
	Type string

	// Since filters entries created at or after this time.
	Since *time.Time

	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// Reader provides read-only access to the journal.
type Reader struct {
	db *sql.DB
}

// NewReader opens the journal read-only so a running daemon is never blocked.
func NewReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal not found: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the database connection.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query returns matching entries, newest first.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	query, args := buildQuery(opts)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                       Entry
			requester, code, detail sql.NullString
			createdAt               string
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &requester, &e.CorrelationID,
			&e.Success, &code, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Requester, e.Code, e.Detail = requester.String, code.String, detail.String
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// LearnedCodes returns distinct learned codes, most recently learned first.
func (r *Reader) LearnedCodes(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT code FROM events WHERE type = ? AND code IS NOT NULL GROUP BY code ORDER BY MAX(id) DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, query, TypeLearned)
	if err != nil {
		return nil, fmt.Errorf("query learned codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

const sqliteTime = "2006-01-02 15:04:05"

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(sqliteTime, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at: %w", err)
	}
	return t, nil
}

func buildQuery(opts QueryOpts) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	query := "SELECT id, type, source, requester, correlation_id, success, code, detail, created_at FROM events WHERE 1=1"

	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.Since.UTC().Format(sqliteTime))
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

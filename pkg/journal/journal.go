// Package journal keeps a SQLite history of completed sends and learned
// codes so they can be listed after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Entry is one journal row.
type Entry struct {
	ID            int64
	Type          string
	Source        string
	Requester     string
	CorrelationID uint32
	Success       bool
	Code          string
	Detail        string
	CreatedAt     time.Time
}

const queueSize = 64

// Journal appends entries from a background writer so callers on the IR
// paths never wait for the disk.
type Journal struct {
	db      *sql.DB
	queue   chan Entry
	dropped atomic.Uint64
	log     *slog.Logger
}

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Journal{db: db, queue: make(chan Entry, queueSize), log: log}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Enqueue hands an entry to the writer. When the writer has fallen
// behind the entry is dropped.
func (j *Journal) Enqueue(e Entry) {
	select {
	case j.queue <- e:
	default:
		n := j.dropped.Add(1)
		j.log.Warn("journal queue full, entry dropped", "type", e.Type, "dropped_total", n)
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return nil
		case e := <-j.queue:
			if err := j.Append(ctx, e); err != nil {
				j.log.Warn("journal write", "error", err)
			}
		}
	}
}

func (j *Journal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-j.queue:
			if err := j.Append(ctx, e); err != nil {
				j.log.Warn("journal write", "error", err)
				return
			}
		default:
			return
		}
	}
}

// Append writes an entry synchronously.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (type, source, requester, correlation_id, success, code, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Type, e.Source, e.Requester, e.CorrelationID, e.Success, e.Code, e.Detail)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// DefaultPath returns the journal location under the user's home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".irgate", "journal.db")
}

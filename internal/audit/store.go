package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ihavespoons/attn/internal/logger"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// Record is one notification attempt, successful or not.
type Record struct {
	ID        string
	SessionID string
	Category  string
	Title     string
	Body      string
	Priority  int
	Tags      string
	SentAt    time.Time
	Success   bool
	Error     string
}

// Store persists notification attempts to SQLite so the user can audit
// what attn sent (or failed to send) after the fact. Session state is
// deliberately not persisted here; only dispatcher activity is.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore opens the audit database, creating it if needed. An empty
// path uses the default under ~/.attn.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, ".attn", "notifications.db")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	// WAL mode so the log command can read while the daemon writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug().
		Str("path", dbPath).
		Msg("Opened audit store")

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		category TEXT NOT NULL,
		title TEXT,
		body TEXT,
		priority INTEGER,
		tags TEXT,
		sent_at INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications(sent_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_session ON notifications(session_id, sent_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Add stores one notification attempt. A missing ID gets a fresh UUID.
func (s *Store) Add(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}

	success := 0
	if rec.Success {
		success = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO notifications (id, session_id, category, title, body, priority, tags, sent_at, success, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.SessionID,
		rec.Category,
		rec.Title,
		rec.Body,
		rec.Priority,
		rec.Tags,
		rec.SentAt.Unix(),
		success,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to store notification record: %w", err)
	}

	return nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, session_id, category, title, body, priority, tags, sent_at, success, error
		 FROM notifications
		 ORDER BY sent_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		var rec Record
		var sentAt int64
		var success int

		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Category, &rec.Title, &rec.Body, &rec.Priority, &rec.Tags, &sentAt, &success, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan notification record: %w", err)
		}

		rec.SentAt = time.Unix(sentAt, 0)
		rec.Success = success != 0
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// Prune removes records older than the given TTL.
func (s *Store) Prune(ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl).Unix()

	result, err := s.db.Exec("DELETE FROM notifications WHERE sent_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		logger.Debug().
			Int64("deleted", deleted).
			Str("ttl", ttl.String()).
			Msg("Pruned old notification records")
	}

	return deleted, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

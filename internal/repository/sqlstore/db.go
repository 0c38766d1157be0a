package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"mailcleaner/internal/repository"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// Store implements every repository interface on top of one sqlx handle.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an already opened handle. Tests use it with sqlmock.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects to PostgreSQL when databaseURL is set and to an embedded
// SQLite file at sqlitePath otherwise, then creates the schema.
func Open(ctx context.Context, databaseURL, sqlitePath string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	if strings.HasPrefix(databaseURL, "postgres") {
		db, err = sqlx.Open(driverPostgres, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	} else {
		if databaseURL != "" {
			return nil, fmt.Errorf("unsupported DATABASE_URL scheme")
		}
		if dir := filepath.Dir(sqlitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn := sqlitePath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"
		db, err = sqlx.Open(driverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db)
	if err := s.InitializeDatabase(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InitializeDatabase creates the required tables and indexes. The statements
// are portable between SQLite and PostgreSQL.
func (s *Store) InitializeDatabase(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS emails (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL DEFAULT '',
			sender_email TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			body_preview TEXT NOT NULL DEFAULT '',
			date_ms BIGINT NOT NULL DEFAULT 0,
			is_read INTEGER NOT NULL DEFAULT 0,
			labels TEXT NOT NULL DEFAULT '[]',
			category TEXT,
			category_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			ai_summary TEXT NOT NULL DEFAULT '',
			unsubscribe_link TEXT NOT NULL DEFAULT '',
			unsubscribe_email TEXT NOT NULL DEFAULT '',
			user_action TEXT NOT NULL DEFAULT '',
			updated_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS user_feedback (
			id TEXT PRIMARY KEY,
			email_id TEXT NOT NULL,
			sender_email TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			original_category TEXT NOT NULL DEFAULT '',
			user_decision TEXT NOT NULL,
			created_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ml_training_data (
			id TEXT PRIMARY KEY,
			sender_email TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			created_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sender_stats (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			total_emails INTEGER NOT NULL DEFAULT 0,
			unread_count INTEGER NOT NULL DEFAULT 0,
			last_received_ms BIGINT NOT NULL DEFAULT 0,
			has_unsubscribe INTEGER NOT NULL DEFAULT 0,
			updated_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS unsubscribe_log (
			id TEXT PRIMARY KEY,
			email_id TEXT NOT NULL DEFAULT '',
			sender_email TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			target TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_sender ON emails(sender_email)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_category ON emails(category)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_sender_date ON emails(sender_email, date_ms)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s, error: %w", query, err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ repository.MessageRepository        = (*Store)(nil)
	_ repository.AggregateRepository      = (*Store)(nil)
	_ repository.SettingsRepository       = (*Store)(nil)
	_ repository.FeedbackRepository       = (*Store)(nil)
	_ repository.UnsubscribeLogRepository = (*Store)(nil)
)

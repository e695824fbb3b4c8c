package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-gateway/internal/model"
)

// defaultListLimit caps list queries that pass a non-positive limit.
const defaultListLimit = 50

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection; pin it to one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// The IMAP loop and the HTTP API write concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordDelivery inserts a delivery record. If the record has no ID, a
// new UUID is generated.
func (s *SQLiteStore) RecordDelivery(
	ctx context.Context,
	d model.Delivery,
) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, recipient, subject, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Recipient, d.Subject, boolToInt(d.Success), d.Error,
		d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording delivery to %s: %w", d.Recipient, err)
	}

	return nil
}

// ListDeliveries returns the most recent deliveries, newest first.
func (s *SQLiteStore) ListDeliveries(
	ctx context.Context,
	limit int,
) ([]model.Delivery, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var deliveries []model.Delivery
	err := s.db.SelectContext(ctx, &deliveries, `
		SELECT id, recipient, subject, success, error, created_at
		FROM deliveries
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}

	return deliveries, nil
}

// MarkProcessed remembers that the command message with messageID has
// been handled. Marking the same message twice is not an error.
func (s *SQLiteStore) MarkProcessed(
	ctx context.Context,
	messageID string,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (message_id, processed_at)
		VALUES (?, ?)`,
		messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking message %s processed: %w", messageID, err)
	}
	return nil
}

// IsProcessed reports whether MarkProcessed was called for messageID.
func (s *SQLiteStore) IsProcessed(
	ctx context.Context,
	messageID string,
) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM processed_messages WHERE message_id = ?",
		messageID,
	)
	if err != nil {
		return false, fmt.Errorf("checking message %s: %w", messageID, err)
	}
	return count > 0, nil
}

// boolToInt converts a bool to an integer for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

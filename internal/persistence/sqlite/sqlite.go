// Package sqlite stores the Room mirror in a SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/persistence"
)

// Config holds SQLite connection settings.
type Config struct {
	// DSN is the database file path or connection string.
	DSN string
	// BusyTimeout sets how long to wait for database locks.
	BusyTimeout time.Duration
	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.).
	JournalMode string
	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF).
	Synchronous string
}

// DefaultConfig returns settings suitable for a single local process.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:         dsn,
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
	}
}

// Storage keeps the mirror document in a single-row table.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

var _ persistence.RoomMirror = (*Storage)(nil)

// Open opens the database at dsn with DefaultConfig.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn))
}

// OpenWithConfig opens and configures the database described by cfg.
func OpenWithConfig(cfg Config) (*Storage, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("sqlite: dsn is required")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := configure(db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Storage{db: db, now: time.Now}, nil
}

func configure(db *sql.DB, cfg Config) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
	}
	if cfg.JournalMode != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = "+cfg.JournalMode)
	}
	if cfg.Synchronous != "" {
		pragmas = append(pragmas, "PRAGMA synchronous = "+cfg.Synchronous)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return nil
}

// Migrate creates the mirror table if it does not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS room_mirror (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			payload    TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping tests the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRooms replaces the stored collection.
func (s *Storage) SaveRooms(ctx context.Context, rooms []domain.Room) error {
	data, err := persistence.EncodeRooms(rooms)
	if err != nil {
		return err
	}
	const upsert = `
		INSERT INTO room_mirror (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsert, string(data), s.now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sqlite: save rooms: %w", err)
		}
		return nil
	})
}

// LoadRooms returns the stored collection, or nil when nothing was saved yet.
func (s *Storage) LoadRooms(ctx context.Context) ([]domain.Room, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM room_mirror WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load rooms: %w", err)
	}
	return persistence.DecodeRooms([]byte(payload))
}

// UpdatedAt reports when the mirror was last saved. ok is false when it never was.
func (s *Storage) UpdatedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT updated_at FROM room_mirror WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite: load mirror timestamp: %w", err)
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: bad timestamp %q", persistence.ErrMirrorCorrupt, raw)
	}
	return t, true, nil
}

// withTransaction runs fn in a transaction, rolling back when it fails.
func (s *Storage) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

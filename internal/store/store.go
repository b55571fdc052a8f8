// Package store persists client state in sqlite: the per-key nonce
// high-water mark and the journal of mutating calls.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/solidifx/solidi-go/pkg/logger"
)

// Store wraps the sqlite connection pool.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
	BusyTimeoutMs   int
}

// DefaultConfig returns default database configuration
func DefaultConfig() *Config {
	return &Config{
		Path:            defaultPath(),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 300,
		BusyTimeoutMs:   5000,
	}
}

func defaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "solidi", "state.db")
	}
	return "./solidi-state.db"
}

//go:embed schema.sql
var ddl string

// Open creates the database file if needed, applies migrations and returns
// a ready Store.
func Open(config *Config, log *logger.Logger) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BusyTimeoutMs <= 0 {
		config.BusyTimeoutMs = 5000
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// _txlock=immediate takes the write lock at BEGIN so concurrent nonce
	// reservations from several processes serialize instead of deadlocking.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d&_txlock=immediate",
		config.Path, config.BusyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewFromDB(db, log)
	if err := s.Setup(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	return s, nil
}

// NewFromDB wraps an existing connection. The caller is responsible for
// calling Setup.
func NewFromDB(db *sql.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{db: db, logger: log.WithComponent("store")}
}

// Setup applies pending migrations.
func (s *Store) Setup(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// ExecTx executes a function within a transaction
func (s *Store) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Ping checks if the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return currentVersion(ctx, s.db)
}

func (s *Store) observe(ctx context.Context, op, table string, start time.Time) {
	s.logger.DBQuery(ctx, op, table, time.Since(start))
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
}

// Migrations returns all migrations in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "nonce high-water marks and request journal",
			Up:          ddl,
		},
	}
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		);
	`)
	return err
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	return tx.Commit()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	version, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations() {
		if m.Version <= version {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
	}
	return nil
}

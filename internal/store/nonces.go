package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solidifx/solidi-go/pkg/nonce"
)

// NonceGenerator is a nonce.Generator whose high-water mark lives in
// sqlite. Each reservation runs in its own immediate transaction, so values
// stay strictly increasing across restarts and across processes sharing the
// database file.
type NonceGenerator struct {
	store *Store
	clock nonce.Clock
}

var _ nonce.Generator = (*NonceGenerator)(nil)

// NewNonceGenerator creates a persistent generator. A nil clock uses time.Now.
func NewNonceGenerator(s *Store, clock nonce.Clock) *NonceGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &NonceGenerator{store: s, clock: clock}
}

// Next reserves and returns the next nonce for apiKey.
func (g *NonceGenerator) Next(ctx context.Context, apiKey string) (int64, error) {
	start := time.Now()
	defer g.store.observe(ctx, "reserve", "nonces", start)

	var next int64
	err := g.store.ExecTx(ctx, func(tx *sql.Tx) error {
		last, err := lastNonce(ctx, tx, apiKey)
		if err != nil {
			return err
		}

		next = nonce.Advance(last, nonce.Micros(g.clock()))

		_, err = tx.ExecContext(ctx, `
			INSERT INTO nonces (api_key, last_nonce, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(api_key) DO UPDATE SET last_nonce = excluded.last_nonce, updated_at = excluded.updated_at`,
			apiKey, next, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to store nonce: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reserve nonce: %w", err)
	}
	return next, nil
}

// Last returns the stored high-water mark for apiKey, or 0.
func (g *NonceGenerator) Last(ctx context.Context, apiKey string) (int64, error) {
	return lastNonce(ctx, g.store.db, apiKey)
}

// NonceRecord is one row of the nonces table.
type NonceRecord struct {
	APIKey    string
	LastNonce int64
	UpdatedAt time.Time
}

// List returns every stored high-water mark ordered by key.
func (g *NonceGenerator) List(ctx context.Context) ([]NonceRecord, error) {
	rows, err := g.store.db.QueryContext(ctx,
		"SELECT api_key, last_nonce, updated_at FROM nonces ORDER BY api_key")
	if err != nil {
		return nil, fmt.Errorf("failed to list nonces: %w", err)
	}
	defer rows.Close()

	var out []NonceRecord
	for rows.Next() {
		var r NonceRecord
		if err := rows.Scan(&r.APIKey, &r.LastNonce, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan nonce row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset forgets the high-water mark for apiKey. The next nonce falls back
// to the clock.
func (g *NonceGenerator) Reset(ctx context.Context, apiKey string) error {
	if _, err := g.store.db.ExecContext(ctx, "DELETE FROM nonces WHERE api_key = ?", apiKey); err != nil {
		return fmt.Errorf("failed to reset nonce: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastNonce(ctx context.Context, q queryRower, apiKey string) (int64, error) {
	var last int64
	err := q.QueryRowContext(ctx, "SELECT last_nonce FROM nonces WHERE api_key = ?", apiKey).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce: %w", err)
	}
	return last, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solidifx/solidi-go/pkg/api"
)

// ErrEntryNotFound is returned when a request id is not in the journal.
var ErrEntryNotFound = errors.New("journal entry not found")

// Journal records mutating calls so ambiguous outcomes can be reconciled.
type Journal struct {
	store *Store
}

// NewJournal creates a Journal on s.
func NewJournal(s *Store) *Journal {
	return &Journal{store: s}
}

// Record inserts a new entry. The status defaults to pending.
func (j *Journal) Record(ctx context.Context, e api.JournalEntry) error {
	start := time.Now()
	defer j.store.observe(ctx, "insert", "requests", start)

	if e.Status == "" {
		e.Status = api.CallPending
	}
	params, err := json.Marshal(e.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	now := time.Now().UTC()

	_, err = j.store.db.ExecContext(ctx, `
		INSERT INTO requests (request_id, api_key_id, method, route, nonce, params, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.APIKeyID, e.Method, e.Route, e.Nonce, string(params), string(e.Status), e.Error, now, now)
	if err != nil {
		return fmt.Errorf("failed to record request %s: %w", e.RequestID, err)
	}
	return nil
}

// Resolve moves an entry to its final status. A nonce retry reuses the
// entry, so nonce is updated as well when non-zero.
func (j *Journal) Resolve(ctx context.Context, requestID string, nonce int64, status api.CallStatus, message string) error {
	start := time.Now()
	defer j.store.observe(ctx, "update", "requests", start)

	if !status.Valid() {
		return fmt.Errorf("invalid journal status %q", status)
	}

	res, err := j.store.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, error = ?, nonce = CASE WHEN ? > 0 THEN ? ELSE nonce END, updated_at = ?
		WHERE request_id = ?`,
		string(status), message, nonce, nonce, time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("failed to resolve request %s: %w", requestID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, requestID)
	}
	return nil
}

// Get returns one entry.
func (j *Journal) Get(ctx context.Context, requestID string) (api.JournalEntry, error) {
	row := j.store.db.QueryRowContext(ctx, selectEntries+" WHERE request_id = ?", requestID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.JournalEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, requestID)
	}
	return e, err
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	Status api.CallStatus
	Limit  int
}

// List returns entries newest first.
func (j *Journal) List(ctx context.Context, f ListFilter) ([]api.JournalEntry, error) {
	start := time.Now()
	defer j.store.observe(ctx, "select", "requests", start)

	query := selectEntries
	var args []any
	if f.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	var out []api.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectEntries = `
	SELECT request_id, api_key_id, method, route, nonce, params, status, error, created_at, updated_at
	FROM requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (api.JournalEntry, error) {
	var (
		e      api.JournalEntry
		params string
		status string
	)
	err := s.Scan(&e.RequestID, &e.APIKeyID, &e.Method, &e.Route, &e.Nonce, &params, &status, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan journal row: %w", err)
	}
	e.Status = api.CallStatus(status)
	if params != "" && params != "null" {
		if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
			return e, fmt.Errorf("failed to decode params for %s: %w", e.RequestID, err)
		}
	}
	return e, nil
}

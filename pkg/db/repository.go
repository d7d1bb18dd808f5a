package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// Invocation is one journal row: the outcome of a single agent turn.
type Invocation struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Operation  string    `json:"operation"`
	Region     string    `json:"region"`
	AccountID  string    `json:"accountId"`
	State      string    `json:"state"`
	Repaired   bool      `json:"repaired"`
	Handled    bool      `json:"handled"`
	BodyBytes  int       `json:"bodyBytes"`
	DurationMs int64     `json:"durationMs"`
	Created    time.Time `json:"created"`
}

// StateCount is the number of journal rows per outcome state.
type StateCount struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

// Repository provides database access for the invocation journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordInvocation inserts one journal row.
func (r *Repository) RecordInvocation(ctx context.Context, inv *Invocation) error {
	slog.Debug(fmt.Sprintf("%s - RecordInvocation id=%s operation=%s state=%s", repoLogPrefix, inv.ID, inv.Operation, inv.State))

	created := inv.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO action_invocations
		   (id, session_id, operation, region, account_id, state, repaired, handled, body_bytes, duration_ms, created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inv.ID, inv.SessionID, inv.Operation, inv.Region, inv.AccountID, inv.State,
		inv.Repaired, inv.Handled, inv.BodyBytes, inv.DurationMs, created)
	if err != nil {
		return fmt.Errorf("%s - insert invocation: %w", repoLogPrefix, err)
	}
	return nil
}

// ListRecentInvocations returns the newest rows first.
func (r *Repository) ListRecentInvocations(ctx context.Context, limit int) ([]Invocation, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, operation, region, account_id, state, repaired, handled, body_bytes, duration_ms, created
		 FROM action_invocations
		 ORDER BY created DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - list invocations: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.ID, &inv.SessionID, &inv.Operation, &inv.Region, &inv.AccountID, &inv.State,
			&inv.Repaired, &inv.Handled, &inv.BodyBytes, &inv.DurationMs, &inv.Created); err != nil {
			return nil, fmt.Errorf("%s - scan invocation: %w", repoLogPrefix, err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list invocations: %w", repoLogPrefix, err)
	}
	return out, nil
}

// CountByState aggregates the journal per outcome state.
func (r *Repository) CountByState(ctx context.Context) ([]StateCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT state, COUNT(*) FROM action_invocations GROUP BY state ORDER BY state`)
	if err != nil {
		return nil, fmt.Errorf("%s - count by state: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []StateCount
	for rows.Next() {
		var sc StateCount
		if err := rows.Scan(&sc.State, &sc.Count); err != nil {
			return nil, fmt.Errorf("%s - scan state count: %w", repoLogPrefix, err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

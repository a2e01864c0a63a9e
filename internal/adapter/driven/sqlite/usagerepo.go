package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UsageLedger = (*UsageRepo)(nil)

// UsageRepo is the SQLite implementation of the UsageLedger port interface.
// A single row holds the counter; the single-connection writer pool plus
// SQLite's file locking and busy timeout serialize commits in-process and
// across processes sharing the database file.
type UsageRepo struct {
	db    *DB
	limit int
}

// NewUsageRepo creates a UsageRepo enforcing the given quota limit.
func NewUsageRepo(db *DB, limit int) *UsageRepo {
	return &UsageRepo{db: db, limit: limit}
}

// Reconcile writes the configured quota limit into the stored row so the
// database file stays self-describing when the override changes between
// runs. Call once at startup, after migrations.
func (r *UsageRepo) Reconcile(ctx context.Context) error {
	const query = `UPDATE usage_counter SET quota_limit = ? WHERE id = 1`
	if _, err := r.db.Writer.ExecContext(ctx, query, r.limit); err != nil {
		return fmt.Errorf("reconcile quota limit: %w", err)
	}
	return nil
}

// CheckAdmission returns nil while the counter is below the limit, and a
// quota_exceeded fault once it is not. Read-only.
func (r *UsageRepo) CheckAdmission(ctx context.Context) error {
	count, _, err := r.read(ctx)
	if err != nil {
		return err
	}
	if count >= r.limit {
		f := fault.Newf(fault.KindQuotaExceeded, "usage %d of %d consumed", count, r.limit)
		f.Remediation = "the generation quota is exhausted; run `genforge usage reset` after the plan renews"
		return f
	}
	return nil
}

// Commit adds exactly one unit to the counter. The orchestrator calls this
// once per successful job, after validating the terminal payload; a unit of
// remote capacity has already been consumed, so the increment is
// unconditional even if the limit has been reached meanwhile.
func (r *UsageRepo) Commit(ctx context.Context) error {
	const query = `UPDATE usage_counter SET count = count + 1 WHERE id = 1`

	result, err := r.db.Writer.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("commit usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("commit usage: counter row missing")
	}
	return nil
}

// Snapshot returns the current counts for display.
func (r *UsageRepo) Snapshot(ctx context.Context) (model.UsageSnapshot, error) {
	count, lastReset, err := r.read(ctx)
	if err != nil {
		return model.UsageSnapshot{}, err
	}
	return model.UsageSnapshot{
		Count:       count,
		Limit:       r.limit,
		LastResetAt: lastReset,
	}, nil
}

// Reset zeroes the counter and records when it happened. Explicit operator
// action; nothing in the daemon triggers it.
func (r *UsageRepo) Reset(ctx context.Context) error {
	const query = `UPDATE usage_counter SET count = 0, last_reset_at = ? WHERE id = 1`

	if _, err := r.db.Writer.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	return nil
}

func (r *UsageRepo) read(ctx context.Context) (count int, lastReset time.Time, err error) {
	const query = `SELECT count, last_reset_at FROM usage_counter WHERE id = 1`

	var resetAt sql.NullString
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&count, &resetAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("read usage counter: %w", err)
	}
	if resetAt.Valid && resetAt.String != "" {
		lastReset, err = parseTime(resetAt.String)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("parse last_reset_at: %w", err)
		}
	}
	return count, lastReset, nil
}

package driven

import (
	"context"

	"github.com/evanhartley/genforge/internal/domain/model"
)

// UsageLedger defines the driven port for the persistent quota counter.
// The counter only moves forward: one Commit per successfully completed
// generation, charged after the result is validated. There is no automatic
// rollover; Reset is an explicit operator action.
type UsageLedger interface {
	// CheckAdmission returns nil while the counter is below the limit,
	// and a quota_exceeded fault once it is not. It never mutates.
	CheckAdmission(ctx context.Context) error

	// Commit adds exactly one unit. Implementations serialize concurrent
	// commits so parallel jobs never lose increments, in-process or
	// across processes sharing the ledger file.
	Commit(ctx context.Context) error

	// Snapshot returns the current counts for display.
	Snapshot(ctx context.Context) (model.UsageSnapshot, error)

	// Reset zeroes the counter and records when it happened.
	Reset(ctx context.Context) error
}

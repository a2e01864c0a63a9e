package driven

import (
	"context"
	"errors"

	"github.com/evanhartley/genforge/internal/domain/model"
)

// ErrJobNotFound is returned by JobStore.Get for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStore defines the driven port for the job archive. The archive is
// history, not state: jobs are recorded once, at their terminal state, and
// never drive recovery after a restart.
type JobStore interface {
	// Record persists a terminal job. Recording the same job ID twice
	// replaces the earlier row.
	Record(ctx context.Context, job model.GenerationJob) error

	// List returns the most recent jobs, newest first, at most limit.
	List(ctx context.Context, limit int) ([]model.GenerationJob, error)

	// Get returns one archived job by its local ID.
	Get(ctx context.Context, id string) (model.GenerationJob, error)
}

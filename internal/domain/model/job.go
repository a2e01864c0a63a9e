package model

import "time"

// GenerationJob is one tracked generation run, from admission through its
// terminal state. ID is assigned locally before the service knows about the
// job; InferenceID arrives with a successful submission.
type GenerationJob struct {
	ID          string
	InferenceID string
	Type        GenerationType
	Prompt      string
	State       JobState
	FaultKind   string // terminal fault classification, empty when Succeeded
	FaultDetail string
	Attempts    int // transport attempts consumed by submission
	Polls       int // status checks performed
	Files       []GeneratedFile
	CreatedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns wall time from creation to the terminal state, or zero
// while the job is still running.
func (j GenerationJob) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}

// JobResult is the terminal outcome of a run. Fault is nil exactly when the
// job succeeded; otherwise it carries the classified cause of the terminal
// state.
type JobResult struct {
	Job   GenerationJob
	Fault error
}

// Succeeded reports whether the run produced a validated asset.
func (r JobResult) Succeeded() bool {
	return r.Job.State == JobStateSucceeded
}

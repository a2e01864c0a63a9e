package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// JobObserver receives terminal jobs for instrumentation. Implementations
// must not block.
type JobObserver interface {
	JobFinished(job model.GenerationJob)
}

// OrchestratorConfig tunes the job state machine.
type OrchestratorConfig struct {
	// PollInterval is the pause between status checks.
	PollInterval time.Duration
	// MaxWait is the whole-job wall-clock budget, measured from creation.
	MaxWait time.Duration
}

// DefaultOrchestratorConfig returns the production tuning: poll every five
// seconds, give up after five minutes.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PollInterval: 5 * time.Second,
		MaxWait:      5 * time.Minute,
	}
}

// Orchestrator drives one generation request from admission through its
// terminal state: Created -> Admitted -> Submitted -> Polling -> terminal.
// Instances are cheap; concurrent jobs share only the ledger and the
// executor's breaker.
type Orchestrator struct {
	provider *ClientProvider
	executor *Executor
	ledger   driven.UsageLedger
	jobs     driven.JobStore // may be nil; archiving is best-effort anyway
	observer JobObserver
	cfg      OrchestratorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator wires the state machine's collaborators.
func NewOrchestrator(
	provider *ClientProvider,
	executor *Executor,
	ledger driven.UsageLedger,
	jobs driven.JobStore,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider: provider,
		executor: executor,
		ledger:   ledger,
		jobs:     jobs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetObserver attaches an instrumentation hook for terminal jobs.
func (o *Orchestrator) SetObserver(obs JobObserver) {
	o.observer = obs
}

// Run drives params to a terminal state and returns the result. It never
// returns a Go error: the terminal condition lives in the result, and the
// host decides what to do with it. Usage is committed exactly once, only
// after a validated success. Cancellation is honored at loop boundaries.
func (o *Orchestrator) Run(ctx context.Context, params model.GenerationParams) model.JobResult {
	job := model.GenerationJob{
		ID:        uuid.NewString(),
		Type:      params.Type,
		Prompt:    params.Prompt,
		State:     model.JobStateCreated,
		CreatedAt: o.now(),
	}
	log := o.logger.With("job", job.ID, "type", params.Type)

	if err := params.Validate(); err != nil {
		return o.finish(ctx, job, model.JobStateFailed,
			fault.Wrap(fault.KindRejected, "invalid generation parameters", err), log)
	}

	client := o.provider.Get()
	if client == nil {
		f := fault.New(fault.KindAuthRejected, "no credential configured")
		f.Remediation = "run `genforge setup` to store a credential"
		return o.finish(ctx, job, model.JobStateFailed, f, log)
	}

	// Created -> Admitted | QuotaBlocked. No network call for a blocked job.
	if err := o.ledger.CheckAdmission(ctx); err != nil {
		if fault.IsKind(err, fault.KindQuotaExceeded) {
			return o.finish(ctx, job, model.JobStateQuotaBlocked, err, log)
		}
		return o.finish(ctx, job, model.JobStateFailed, err, log)
	}
	job.State = model.JobStateAdmitted

	// Admitted -> Submitted. Submission is not idempotent: the executor
	// retries it only while the request provably never reached the service.
	var ref model.InferenceRef
	err := o.executor.Execute(ctx, "createInference", false, func(ctx context.Context) error {
		job.Attempts++
		var callErr error
		ref, callErr = client.CreateInference(ctx, params)
		return callErr
	})
	if err != nil {
		if fault.IsKind(err, fault.KindCancelled) {
			return o.finish(ctx, job, model.JobStateCancelled, err, log)
		}
		return o.finish(ctx, job, model.JobStateFailed, err, log)
	}
	job.InferenceID = ref.ID
	job.State = model.JobStateSubmitted
	log.Info("job submitted", "inference", ref.ID, "attempts", job.Attempts)

	return o.poll(ctx, client, job, log)
}

// poll is the Polling state: one status check per interval until the remote
// reaches a terminal state, the wait budget runs out, or the caller cancels.
func (o *Orchestrator) poll(ctx context.Context, client driven.GenerationClient, job model.GenerationJob, log *slog.Logger) model.JobResult {
	job.State = model.JobStatePolling
	deadline := job.CreatedAt.Add(o.cfg.MaxWait)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return o.finish(ctx, job, model.JobStateCancelled,
				fault.Wrap(fault.KindCancelled, "cancelled while polling", ctx.Err()), log)
		case <-ticker.C:
		}

		if o.now().After(deadline) {
			f := fault.Newf(fault.KindTimedOut, "no terminal status within %s", o.cfg.MaxWait)
			f.Remediation = "the generation may still finish remotely; check the workspace console"
			return o.finish(ctx, job, model.JobStateTimedOut, f, log)
		}

		var status model.InferenceStatus
		err := o.executor.Execute(ctx, "inferenceStatus", true, func(ctx context.Context) error {
			job.Polls++
			var callErr error
			status, callErr = client.InferenceStatus(ctx, job.InferenceID)
			return callErr
		})
		if err != nil {
			switch fault.KindOf(err) {
			case fault.KindCancelled:
				return o.finish(ctx, job, model.JobStateCancelled, err, log)
			case fault.KindMalformed, fault.KindAuthRejected, fault.KindRejected:
				// Permanent: the poll answer itself is unusable.
				return o.finish(ctx, job, model.JobStateFailed, err, log)
			default:
				// Transient (exhausted retries or open circuit): tolerated
				// while the budget lasts.
				log.Warn("poll failed, continuing", "inference", job.InferenceID, "error", err)
				continue
			}
		}

		switch status.State {
		case model.InferenceRunning:
			continue
		case model.InferenceComplete:
			return o.succeed(ctx, job, status, log)
		case model.InferenceFailed:
			return o.finish(ctx, job, model.JobStateFailed,
				fault.New(fault.KindRejected, "remote reports the generation failed"), log)
		case model.InferenceCancelled:
			return o.finish(ctx, job, model.JobStateFailed,
				fault.New(fault.KindRejected, "remote reports the generation was cancelled"), log)
		}
	}
}

// succeed commits the usage unit and returns the validated result. The
// transport has already validated the payload; a commit failure after a
// confirmed success is logged loudly but does not fail the job, since the
// unit of remote capacity is spent either way.
func (o *Orchestrator) succeed(ctx context.Context, job model.GenerationJob, status model.InferenceStatus, log *slog.Logger) model.JobResult {
	job.Files = status.Files

	if err := o.ledger.Commit(ctx); err != nil {
		log.Error("usage commit failed after confirmed success; ledger now undercounts",
			"inference", job.InferenceID, "error", err)
	}

	return o.finish(ctx, job, model.JobStateSucceeded, nil, log)
}

// finish stamps the terminal state, archives the job, and notifies the
// observer. Archive failures are logged, never surfaced.
func (o *Orchestrator) finish(ctx context.Context, job model.GenerationJob, state model.JobState, cause error, log *slog.Logger) model.JobResult {
	job.State = state
	job.FinishedAt = o.now()
	if cause != nil {
		job.FaultKind = string(fault.KindOf(cause))
		job.FaultDetail = faultDetail(cause)
	}

	if o.jobs != nil {
		// The request context may already be cancelled; archive anyway.
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.jobs.Record(archiveCtx, job); err != nil {
			log.Error("job archive failed", "error", err)
		}
	}
	if o.observer != nil {
		o.observer.JobFinished(job)
	}

	if cause != nil {
		log.Info("job finished", "state", state, "fault", job.FaultKind, "duration", job.Duration().Round(time.Millisecond))
	} else {
		log.Info("job finished", "state", state, "files", len(job.Files), "duration", job.Duration().Round(time.Millisecond))
	}

	return model.JobResult{Job: job, Fault: cause}
}

func faultDetail(err error) string {
	var f *fault.Fault
	if errors.As(err, &f) {
		return f.Detail
	}
	return err.Error()
}

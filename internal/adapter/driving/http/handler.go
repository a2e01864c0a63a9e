package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/evanhartley/genforge/internal/application"
	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// defaultJobListLimit bounds GET /api/v1/jobs when no limit is given.
const defaultJobListLimit = 50

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	orchestrator *application.Orchestrator
	provider     *application.ClientProvider
	health       *application.HealthService
	ledger       driven.UsageLedger
	jobs         driven.JobStore
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	orchestrator *application.Orchestrator,
	provider *application.ClientProvider,
	health *application.HealthService,
	ledger driven.UsageLedger,
	jobs driven.JobStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		provider:     provider,
		health:       health,
		ledger:       ledger,
		jobs:         jobs,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request-id, logging, and recovery middleware. metricsHandler serves
// the Prometheus scrape endpoint and may be nil.
func NewServeMux(h *Handler, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/generate", h.Generate)
	mux.HandleFunc("POST /api/v1/prompt", h.ExpandPrompt)
	mux.HandleFunc("GET /api/v1/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/v1/usage", h.Usage)
	mux.HandleFunc("POST /api/v1/usage/reset", h.ResetUsage)
	mux.HandleFunc("GET /api/v1/workspace", h.Workspace)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Generate runs one generation job synchronously and returns its terminal
// state. The HTTP status follows the outcome: a success is 200 even though
// the job may have taken minutes, and each fault kind maps to the closest
// status code.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := req.toParams()
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result := h.orchestrator.Run(r.Context(), params)

	writeJSON(w, statusForResult(result), toJobResponse(result.Job))
}

// ExpandPrompt asks the service to rewrite a rough prompt for the given
// asset type.
func (h *Handler) ExpandPrompt(w http.ResponseWriter, r *http.Request) {
	client := h.provider.Get()
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "no credential configured")
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	expanded, err := client.GeneratePrompt(r.Context(), req.Prompt, req.Type)
	if err != nil {
		h.logger.Error("prompt expansion failed", "error", err)
		writeError(w, statusForFault(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PromptResponse{Prompt: expanded})
}

// ListJobs returns the most recently archived jobs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs, err := h.jobs.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toJobResponse(job))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJob returns a single archived job by its local ID.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.jobs.Get(r.Context(), id)
	if errors.Is(err, driven.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "job", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// Usage returns the current quota counter.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to read usage", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toUsageResponse(snap))
}

// ResetUsage zeroes the quota counter. Deliberate operator action; the
// counter never resets on its own.
func (h *Handler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Reset(r.Context()); err != nil {
		h.logger.Error("failed to reset usage", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	snap, err := h.ledger.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to read usage after reset", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toUsageResponse(snap))
}

// Workspace returns the authenticated account and its workspaces. Doubles
// as a live credential check.
func (h *Handler) Workspace(w http.ResponseWriter, r *http.Request) {
	client := h.provider.Get()
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "no credential configured")
		return
	}

	account, err := client.WorkspaceInfo(r.Context())
	if err != nil {
		h.logger.Error("workspace lookup failed", "error", err)
		writeError(w, statusForFault(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// Health returns the daemon's self-report.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Report(r.Context())

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, toHealthResponse(report))
}

// statusForResult maps a terminal job to its HTTP status.
func statusForResult(result model.JobResult) int {
	switch result.Job.State {
	case model.JobStateSucceeded:
		return http.StatusOK
	case model.JobStateQuotaBlocked:
		return http.StatusTooManyRequests
	case model.JobStateTimedOut:
		return http.StatusGatewayTimeout
	default:
		return statusForFault(result.Fault)
	}
}

// statusForFault maps a fault kind to the closest HTTP status.
func statusForFault(err error) int {
	switch fault.KindOf(err) {
	case fault.KindAuthRejected:
		return http.StatusUnauthorized
	case fault.KindQuotaExceeded, fault.KindRateLimited:
		return http.StatusTooManyRequests
	case fault.KindRejected:
		return http.StatusUnprocessableEntity
	case fault.KindTimedOut:
		return http.StatusGatewayTimeout
	case fault.KindCancelled:
		return http.StatusBadRequest
	case fault.KindUnavailable, fault.KindRetriesExhausted, fault.KindCircuitOpen:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

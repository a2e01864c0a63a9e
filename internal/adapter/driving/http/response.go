package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/evanhartley/genforge/internal/application"
	"github.com/evanhartley/genforge/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// GenerateRequest is the JSON body for the generate endpoint. Zero-valued
// fields mean "service default"; pointer fields distinguish an explicit
// zero from unset.
type GenerateRequest struct {
	Type           string   `json:"type"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
	Quality        string   `json:"quality,omitempty"`
	Steps          int      `json:"steps,omitempty"`
	Guidance       float64  `json:"guidance,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	Creativity     *float64 `json:"creativity,omitempty"`
	Resemblance    *float64 `json:"resemblance,omitempty"`
	UpscaleRatio   int      `json:"upscale_ratio,omitempty"`
	Duration       int      `json:"duration,omitempty"`
	Transparency   bool     `json:"transparency,omitempty"`
	Tileability    bool     `json:"tileability,omitempty"`
	IncludeTexture bool     `json:"include_texture,omitempty"`
	FaceLimit      int      `json:"face_limit,omitempty"`
	Files          []string `json:"files,omitempty"`
}

// toParams converts the request body to domain generation parameters.
func (r GenerateRequest) toParams() model.GenerationParams {
	files := make([]model.FileRef, 0, len(r.Files))
	for _, u := range r.Files {
		files = append(files, model.FileRef{URL: u})
	}

	return model.GenerationParams{
		Type:           model.GenerationType(r.Type),
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		Width:          r.Width,
		Height:         r.Height,
		Quality:        r.Quality,
		Steps:          r.Steps,
		Guidance:       r.Guidance,
		Seed:           r.Seed,
		Creativity:     r.Creativity,
		Resemblance:    r.Resemblance,
		UpscaleRatio:   r.UpscaleRatio,
		Duration:       r.Duration,
		Transparency:   r.Transparency,
		Tileability:    r.Tileability,
		IncludeTexture: r.IncludeTexture,
		FaceLimit:      r.FaceLimit,
		Files:          files,
	}
}

// PromptRequest is the JSON body for the prompt expansion endpoint.
type PromptRequest struct {
	Prompt string `json:"prompt"`
	Type   string `json:"type,omitempty"`
}

// PromptResponse carries the expanded prompt.
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

// JobResponse is the JSON representation of a generation job.
type JobResponse struct {
	ID          string         `json:"id"`
	InferenceID string         `json:"inference_id,omitempty"`
	Type        string         `json:"type"`
	Prompt      string         `json:"prompt"`
	State       string         `json:"state"`
	FaultKind   string         `json:"fault_kind,omitempty"`
	FaultDetail string         `json:"fault_detail,omitempty"`
	Attempts    int            `json:"attempts"`
	Polls       int            `json:"polls"`
	Files       []FileResponse `json:"files"`
	CreatedAt   string         `json:"created_at"`
	FinishedAt  string         `json:"finished_at,omitempty"`
}

// FileResponse is one output asset of a completed job.
type FileResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// UsageResponse is the JSON representation of the quota counter.
type UsageResponse struct {
	Count       int     `json:"count"`
	Limit       int     `json:"limit"`
	Remaining   int     `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	Exhausted   bool    `json:"exhausted"`
	LastResetAt string  `json:"last_reset_at,omitempty"`
}

// WorkspaceResponse is one reachable workspace.
type WorkspaceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Personal bool   `json:"personal"`
}

// AccountResponse is the JSON representation of the authenticated account.
type AccountResponse struct {
	ID         string              `json:"id"`
	Email      string              `json:"email"`
	Workspaces []WorkspaceResponse `json:"workspaces"`
}

// HealthResponse is the JSON representation of the health endpoint.
type HealthResponse struct {
	Status           string        `json:"status"`
	VaultConfigured  bool          `json:"vault_configured"`
	ClientConfigured bool          `json:"client_configured"`
	Breaker          string        `json:"breaker"`
	Usage            UsageResponse `json:"usage"`
	Time             string        `json:"time"`
}

// toJobResponse converts a domain job to its JSON representation.
func toJobResponse(job model.GenerationJob) JobResponse {
	files := make([]FileResponse, 0, len(job.Files))
	for _, f := range job.Files {
		files = append(files, FileResponse{ID: f.ID, URL: f.URL, Name: f.Name})
	}

	resp := JobResponse{
		ID:          job.ID,
		InferenceID: job.InferenceID,
		Type:        string(job.Type),
		Prompt:      job.Prompt,
		State:       string(job.State),
		FaultKind:   job.FaultKind,
		FaultDetail: job.FaultDetail,
		Attempts:    job.Attempts,
		Polls:       job.Polls,
		Files:       files,
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !job.FinishedAt.IsZero() {
		resp.FinishedAt = job.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toUsageResponse converts a usage snapshot to its JSON representation.
func toUsageResponse(snap model.UsageSnapshot) UsageResponse {
	resp := UsageResponse{
		Count:       snap.Count,
		Limit:       snap.Limit,
		Remaining:   snap.Remaining(),
		PercentUsed: snap.PercentUsed(),
		Exhausted:   snap.Exhausted(),
	}
	if !snap.LastResetAt.IsZero() {
		resp.LastResetAt = snap.LastResetAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toAccountResponse converts a domain account to its JSON representation.
func toAccountResponse(a model.Account) AccountResponse {
	workspaces := make([]WorkspaceResponse, 0, len(a.Workspaces))
	for _, ws := range a.Workspaces {
		workspaces = append(workspaces, WorkspaceResponse{ID: ws.ID, Name: ws.Name, Personal: ws.Personal})
	}
	return AccountResponse{ID: a.ID, Email: a.Email, Workspaces: workspaces}
}

// toHealthResponse converts the application health report to its JSON
// representation.
func toHealthResponse(h application.Health) HealthResponse {
	return HealthResponse{
		Status:           h.Status,
		VaultConfigured:  h.VaultConfigured,
		ClientConfigured: h.ClientConfigured,
		Breaker:          h.Breaker,
		Usage:            toUsageResponse(h.Usage),
		Time:             time.Now().UTC().Format(time.RFC3339),
	}
}

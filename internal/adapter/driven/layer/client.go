// Package layer implements the GenerationClient port against the Layer.ai
// GraphQL API. Every response is validated for shape here so no caller above
// this package ever dereferences a field the service did not send.
package layer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GenerationClient = (*Client)(nil)

const defaultMediaBase = "https://media.app.layer.ai"

// Client implements the driven.GenerationClient port over HTTPS.
type Client struct {
	httpClient *http.Client
	apiURL     string
	mediaBase  string
	cred       model.Credential
}

// NewClient creates a generation API client. The HTTP client enforces a
// 30-second timeout as a safety net alongside context cancellation.
func NewClient(cred model.Credential, apiURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		mediaBase:  defaultMediaBase,
		cred:       cred,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// media base URL. This constructor is intended for testing, allowing
// injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, apiURL, mediaBase string, cred model.Credential) *Client {
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		mediaBase:  mediaBase,
		cred:       cred,
	}
}

// inferencePayload is the Inference | Error union member for createInference.
type inferencePayload struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	remoteError
}

// CreateInference submits one generation request. Not idempotent: callers
// decide retry eligibility from the fault's Delivered flag.
func (c *Client) CreateInference(ctx context.Context, params model.GenerationParams) (model.InferenceRef, error) {
	var data struct {
		CreateInference *inferencePayload `json:"createInference"`
	}

	input := map[string]any{
		"workspaceId": c.cred.WorkspaceID,
		"parameters":  buildParameters(params),
	}
	if err := c.do(ctx, createInferenceMutation, map[string]any{"input": input}, &data); err != nil {
		return model.InferenceRef{}, err
	}

	if data.CreateInference == nil {
		return model.InferenceRef{}, malformed("createInference payload missing")
	}
	if data.CreateInference.Message != "" {
		return model.InferenceRef{}, classifyRemoteMessage(data.CreateInference.Message)
	}
	if data.CreateInference.ID == "" {
		return model.InferenceRef{}, malformed("createInference returned no inference id")
	}

	state, err := mapInferenceState(data.CreateInference.Status)
	if err != nil {
		return model.InferenceRef{}, err
	}

	ref := model.InferenceRef{ID: data.CreateInference.ID, State: state}
	if t, err := time.Parse(time.RFC3339, data.CreateInference.CreatedAt); err == nil {
		ref.CreatedAt = t
	}
	return ref, nil
}

// InferenceStatus reports progress for one generation. A complete status is
// only returned once its files pass validation; a "complete" answer with a
// missing or URL-less file list is malformed, not success.
func (c *Client) InferenceStatus(ctx context.Context, inferenceID string) (model.InferenceStatus, error) {
	var data struct {
		GetInferencesByID *struct {
			Inferences []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Files  []struct {
					ID   string `json:"id"`
					URL  string `json:"url"`
					Name string `json:"name"`
				} `json:"files"`
			} `json:"inferences"`
			remoteError
		} `json:"getInferencesById"`
	}

	input := map[string]any{"inferenceIds": []string{inferenceID}}
	if err := c.do(ctx, inferencesByIDQuery, map[string]any{"input": input}, &data); err != nil {
		return model.InferenceStatus{}, err
	}

	payload := data.GetInferencesByID
	if payload == nil {
		return model.InferenceStatus{}, malformed("getInferencesById payload missing")
	}
	if payload.Message != "" {
		return model.InferenceStatus{}, classifyRemoteMessage(payload.Message)
	}
	if len(payload.Inferences) == 0 {
		return model.InferenceStatus{}, malformed("getInferencesById returned no inference for id " + inferenceID)
	}

	inf := payload.Inferences[0]
	if inf.ID == "" {
		return model.InferenceStatus{}, malformed("inference entry has no id")
	}
	state, err := mapInferenceState(inf.Status)
	if err != nil {
		return model.InferenceStatus{}, err
	}

	status := model.InferenceStatus{ID: inf.ID, State: state}
	for i, f := range inf.Files {
		if f.URL == "" {
			return model.InferenceStatus{}, malformed(fmt.Sprintf("file entry %d has no url", i))
		}
		status.Files = append(status.Files, model.GeneratedFile{ID: f.ID, URL: f.URL, Name: f.Name})
	}
	if state == model.InferenceComplete && len(status.Files) == 0 {
		return model.InferenceStatus{}, malformed("inference reports complete but carries no files")
	}
	return status, nil
}

// GeneratePrompt expands a rough prompt into the service's preferred phrasing.
func (c *Client) GeneratePrompt(ctx context.Context, rough string, assetType string) (string, error) {
	var data struct {
		GeneratePrompt *struct {
			Value string `json:"value"`
			remoteError
		} `json:"generatePrompt"`
	}

	input := map[string]any{"prompt": rough, "assetType": assetType}
	if err := c.do(ctx, generatePromptMutation, map[string]any{"input": input}, &data); err != nil {
		return "", err
	}

	if data.GeneratePrompt == nil {
		return "", malformed("generatePrompt payload missing")
	}
	if data.GeneratePrompt.Message != "" {
		return "", classifyRemoteMessage(data.GeneratePrompt.Message)
	}
	if data.GeneratePrompt.Value == "" {
		return "", malformed("generatePrompt returned an empty prompt")
	}
	return data.GeneratePrompt.Value, nil
}

// WorkspaceInfo returns the authenticated account and reachable workspaces.
func (c *Client) WorkspaceInfo(ctx context.Context) (model.Account, error) {
	var data struct {
		GetMyUser *struct {
			ID                string `json:"id"`
			Email             string `json:"email"`
			PersonalWorkspace *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"personalWorkspace"`
			Memberships struct {
				Edges []struct {
					Node struct {
						Workspace struct {
							ID   string `json:"id"`
							Name string `json:"name"`
						} `json:"workspace"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"memberships"`
			remoteError
		} `json:"getMyUser"`
	}

	if err := c.do(ctx, myUserQuery, map[string]any{}, &data); err != nil {
		return model.Account{}, err
	}

	user := data.GetMyUser
	if user == nil {
		return model.Account{}, malformed("getMyUser payload missing")
	}
	if user.Message != "" {
		return model.Account{}, classifyRemoteMessage(user.Message)
	}
	if user.ID == "" {
		return model.Account{}, malformed("getMyUser returned no user id")
	}

	account := model.Account{ID: user.ID, Email: user.Email}
	seen := map[string]bool{}
	if user.PersonalWorkspace != nil && user.PersonalWorkspace.ID != "" {
		account.Workspaces = append(account.Workspaces, model.Workspace{
			ID:       user.PersonalWorkspace.ID,
			Name:     user.PersonalWorkspace.Name,
			Personal: true,
		})
		seen[user.PersonalWorkspace.ID] = true
	}
	for _, edge := range user.Memberships.Edges {
		ws := edge.Node.Workspace
		if ws.ID == "" || seen[ws.ID] {
			continue
		}
		seen[ws.ID] = true
		account.Workspaces = append(account.Workspaces, model.Workspace{ID: ws.ID, Name: ws.Name})
	}
	return account, nil
}

// buildParameters converts domain params to the wire shape. Zero-valued
// optional fields are omitted so the service applies its own defaults.
func buildParameters(params model.GenerationParams) map[string]any {
	p := params.Clamped()

	wire := map[string]any{
		"generationType": string(p.Type),
	}
	if p.Prompt != "" {
		wire["prompt"] = p.Prompt
	}
	if p.NegativePrompt != "" {
		wire["negativePrompt"] = p.NegativePrompt
	}
	if p.Width != 0 {
		wire["width"] = p.Width
	}
	if p.Height != 0 {
		wire["height"] = p.Height
	}
	if p.Quality != "" {
		wire["quality"] = p.Quality
	}
	if p.Steps != 0 {
		wire["numInferenceSteps"] = p.Steps
	}
	if p.Guidance != 0 {
		wire["guidanceScale"] = p.Guidance
	}
	if p.Seed != nil {
		wire["seed"] = *p.Seed
	}
	if p.Creativity != nil {
		wire["creativity"] = *p.Creativity
	}
	if p.Resemblance != nil {
		wire["resemblance"] = *p.Resemblance
	}
	if p.UpscaleRatio != 0 {
		wire["upscaleRatio"] = p.UpscaleRatio
	}
	if p.Duration != 0 {
		wire["durationSeconds"] = p.Duration
	}
	if p.Transparency {
		wire["transparency"] = true
	}
	if p.Tileability {
		wire["tileability"] = true
	}
	if p.IncludeTexture {
		wire["includeTextures"] = true
	}
	if p.FaceLimit != 0 {
		wire["faceLimit"] = p.FaceLimit
	}
	if len(p.Files) > 0 {
		files := make([]map[string]any, 0, len(p.Files))
		for _, f := range p.Files {
			files = append(files, map[string]any{"url": f.URL})
		}
		wire["files"] = files
	}
	return wire
}

// mapInferenceState normalizes the wire status enum. Unknown values are
// malformed rather than guessed at.
func mapInferenceState(wire string) (model.InferenceState, error) {
	switch wire {
	case "PENDING", "IN_PROGRESS", "RUNNING":
		return model.InferenceRunning, nil
	case "COMPLETE", "COMPLETED":
		return model.InferenceComplete, nil
	case "FAILED":
		return model.InferenceFailed, nil
	case "CANCELLED":
		return model.InferenceCancelled, nil
	default:
		return "", malformed("unknown inference status " + wire)
	}
}

func malformed(detail string) *fault.Fault {
	f := fault.New(fault.KindMalformed, detail)
	f.Delivered = true
	return f
}

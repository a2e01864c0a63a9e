package driven

import (
	"context"
	"io"

	"github.com/evanhartley/genforge/internal/domain/model"
)

// GenerationClient defines the driven port for the asset generation service.
// Every method performs one authenticated call and validates the response
// shape before returning, so callers never see a half-populated value
// alongside a nil error. Failures carry fault kinds: auth_rejected,
// rejected, and malformed are permanent; unavailable and rate_limited are
// transient and safe to retry at the caller's discretion.
type GenerationClient interface {
	// CreateInference submits a generation and returns the service's
	// handle for it. Not idempotent: a retry after the request reached
	// the service may start a second billable generation.
	CreateInference(ctx context.Context, params model.GenerationParams) (model.InferenceRef, error)

	// InferenceStatus reports current progress for one generation.
	// Idempotent. A complete status always carries at least one file
	// with a non-empty URL.
	InferenceStatus(ctx context.Context, inferenceID string) (model.InferenceStatus, error)

	// GeneratePrompt expands a rough prompt into the service's preferred
	// phrasing for the given asset type.
	GeneratePrompt(ctx context.Context, rough string, assetType string) (string, error)

	// WorkspaceInfo returns the authenticated account and its reachable
	// workspaces. Doubles as a credential check.
	WorkspaceInfo(ctx context.Context) (model.Account, error)

	// CreateUploadTarget reserves a presigned destination for one
	// reference file in the credential's workspace.
	CreateUploadTarget(ctx context.Context, filename string) (model.UploadTarget, error)

	// UploadFile sends the bytes to a reserved target and returns the
	// media URL the file is reachable at afterwards.
	UploadFile(ctx context.Context, target model.UploadTarget, r io.Reader, size int64) (string, error)
}

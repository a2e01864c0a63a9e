package layer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/evanhartley/genforge/internal/domain/model"
)

// CreateUploadTarget reserves a presigned destination for one reference file
// in the credential's workspace.
func (c *Client) CreateUploadTarget(ctx context.Context, filename string) (model.UploadTarget, error) {
	var data struct {
		CreateUploadUrls *struct {
			UploadUrls []struct {
				URL    string `json:"url"`
				FileID string `json:"fileId"`
			} `json:"uploadUrls"`
			remoteError
		} `json:"createUploadUrls"`
	}

	input := map[string]any{
		"workspaceId": c.cred.WorkspaceID,
		"filenames":   []string{filename},
	}
	if err := c.do(ctx, createUploadUrlsMutation, map[string]any{"input": input}, &data); err != nil {
		return model.UploadTarget{}, err
	}

	payload := data.CreateUploadUrls
	if payload == nil {
		return model.UploadTarget{}, malformed("createUploadUrls payload missing")
	}
	if payload.Message != "" {
		return model.UploadTarget{}, classifyRemoteMessage(payload.Message)
	}
	if len(payload.UploadUrls) == 0 {
		return model.UploadTarget{}, malformed("createUploadUrls returned no upload url")
	}
	target := payload.UploadUrls[0]
	if target.URL == "" || target.FileID == "" {
		return model.UploadTarget{}, malformed("upload url entry missing url or fileId")
	}

	return model.UploadTarget{
		URL:      target.URL,
		FileID:   target.FileID,
		Filename: filename,
	}, nil
}

// UploadFile PUTs the bytes to a reserved target and returns the media URL
// the file is reachable at afterwards.
func (c *Client) UploadFile(ctx context.Context, target model.UploadTarget, r io.Reader, size int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, r)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if f := classifyStatus(resp); f != nil {
			return "", f
		}
	}

	return fmt.Sprintf("%s/workspaces/%s/files/%s/%s",
		c.mediaBase, c.cred.WorkspaceID, target.FileID, target.Filename), nil
}

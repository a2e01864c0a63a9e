// Package assets downloads finished generation files to local disk. Result
// files are immutable once published, so the HTTP client sits on a caching
// transport and repeated downloads of the same asset are served locally.
package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
)

// extensionByContentType maps the content types the service emits to file
// extensions, for files whose names carry none.
var extensionByContentType = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"video/mp4":                ".mp4",
	"video/webm":               ".webm",
	"audio/mpeg":               ".mp3",
	"audio/wav":                ".wav",
	"model/gltf+json":          ".gltf",
	"model/gltf-binary":        ".glb",
	"application/octet-stream": ".bin",
}

// Downloader fetches generated files over HTTP.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a Downloader with an in-memory caching transport.
func NewDownloader() *Downloader {
	return &Downloader{
		client: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   2 * time.Minute,
		},
	}
}

// NewDownloaderWithClient creates a Downloader over a custom http.Client,
// for tests.
func NewDownloaderWithClient(client *http.Client) *Downloader {
	return &Downloader{client: client}
}

// Save downloads one generated file into dir and returns the path written.
// The filename comes from the file's Name, falling back to its ID plus an
// extension derived from the response content type.
func (d *Downloader) Save(ctx context.Context, file model.GeneratedFile, dir string) (string, error) {
	if file.URL == "" {
		return "", fault.New(fault.KindMalformed, "generated file has no url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.KindUnavailable, "download failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fault.Newf(fault.KindUnavailable, "download returned HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := fileName(file, resp.Header.Get("Content-Type"))
	path := filepath.Join(dir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}

	return path, nil
}

// SaveAll downloads every file into dir, returning the paths written.
// Stops at the first failure.
func (d *Downloader) SaveAll(ctx context.Context, files []model.GeneratedFile, dir string) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path, err := d.Save(ctx, f, dir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// fileName picks a safe on-disk name for a generated file.
func fileName(file model.GeneratedFile, contentType string) string {
	name := sanitize(file.Name)
	if name == "" {
		name = sanitize(file.ID)
	}
	if name == "" {
		name = "asset"
	}
	if filepath.Ext(name) == "" {
		name += extensionFor(contentType)
	}
	return name
}

// extensionFor resolves a content type to an extension, preferring the
// known service types over the platform MIME database.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	if ext, ok := extensionByContentType[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// sanitize strips path separators and traversal so a hostile file name
// cannot escape the output directory.
func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

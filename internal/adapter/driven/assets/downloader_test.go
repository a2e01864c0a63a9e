package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
)

func TestSave_NamedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)

	d := NewDownloaderWithClient(srv.Client())
	dir := t.TempDir()

	path, err := d.Save(context.Background(), model.GeneratedFile{
		ID: "f1", URL: srv.URL + "/f1", Name: "fox.png",
	}, dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fox.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestSave_ExtensionFromContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "model/gltf-binary")
		_, _ = w.Write([]byte("glb-bytes"))
	}))
	t.Cleanup(srv.Close)

	d := NewDownloaderWithClient(srv.Client())

	path, err := d.Save(context.Background(), model.GeneratedFile{
		ID: "f1", URL: srv.URL + "/f1",
	}, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "f1.glb", filepath.Base(path))
}

func TestSave_SanitizesHostileName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("x"))
	}))
	t.Cleanup(srv.Close)

	d := NewDownloaderWithClient(srv.Client())
	dir := t.TempDir()

	path, err := d.Save(context.Background(), model.GeneratedFile{
		ID: "f1", URL: srv.URL + "/f1", Name: "../../etc/passwd",
	}, dir)

	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "passwd", filepath.Base(path))
}

func TestSave_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	d := NewDownloaderWithClient(srv.Client())

	_, err := d.Save(context.Background(), model.GeneratedFile{ID: "f1", URL: srv.URL + "/gone"}, t.TempDir())

	require.Error(t, err)
	assert.Equal(t, fault.KindUnavailable, fault.KindOf(err))
}

func TestSaveAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("x"))
	}))
	t.Cleanup(srv.Close)

	d := NewDownloaderWithClient(srv.Client())

	paths, err := d.SaveAll(context.Background(), []model.GeneratedFile{
		{ID: "a", URL: srv.URL + "/a", Name: "a.png"},
		{ID: "b", URL: srv.URL + "/b", Name: "b.png"},
	}, t.TempDir())

	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".mp4", extensionFor("video/mp4; codecs=avc1"))
	assert.Equal(t, ".bin", extensionFor(""))
	assert.Equal(t, ".bin", extensionFor("application/octet-stream"))
}

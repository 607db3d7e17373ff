package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/internal/storage"
)

var snapshotMeta = storage.UploadMetadata{
	Name:       "formations_20260101_120000",
	Formations: 3,
	Cars:       11,
	Tag:        "nightly",
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formations_20260101_120000.json.gz")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_Options(t *testing.T) {
	c := New("http://localhost:5000/api/", "k")
	assert.Equal(t, "http://localhost:5000/api", c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	assert.Equal(t, 2*time.Second, New("http://x", "k", WithTimeout(2*time.Second)).httpClient.Timeout)

	hc := &http.Client{}
	assert.Same(t, hc, New("http://x", "k", WithHTTPClient(hc)).httpClient)
}

func TestHealthcheck(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/healthcheck", r.URL.Path)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "maintenance\n")
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", "")
	require.NoError(t, c.Healthcheck(context.Background()))

	status = http.StatusServiceUnavailable
	err := c.Healthcheck(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, "maintenance", se.Body)
	assert.EqualError(t, err, "healthcheck returned status 503: maintenance")
}

func TestHealthcheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, New(url, "").Healthcheck(context.Background()))
}

func TestHealthcheck_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New(srv.URL, "").Healthcheck(ctx), context.Canceled)
}

func TestUpload(t *testing.T) {
	const content = "gzipped snapshot bytes"
	want := sha256.Sum256([]byte(content))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadPath, r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "secret123", r.FormValue("secret"))
		assert.Equal(t, "formations_20260101_120000.json.gz", r.FormValue("filename"))
		assert.Equal(t, snapshotMeta.Name, r.FormValue("name"))
		assert.Equal(t, "3", r.FormValue("formations"))
		assert.Equal(t, "11", r.FormValue("cars"))
		assert.Equal(t, "nightly", r.FormValue("tag"))
		assert.Equal(t, hex.EncodeToString(want[:]), r.FormValue("sha256"))

		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			body, _ := io.ReadAll(f)
			assert.Equal(t, content, string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := New(srv.URL, "secret123").Upload(context.Background(), writeExport(t, content), snapshotMeta)
	assert.NoError(t, err)
}

func TestUpload_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "bad secret", http.StatusForbidden)
	}))
	defer srv.Close()

	err := New(srv.URL, "wrong").Upload(context.Background(), writeExport(t, "x"), snapshotMeta)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upload", se.Op)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, "bad secret", se.Body)
}

func TestUpload_LocalFailures(t *testing.T) {
	c := New("http://localhost:1", "")
	assert.True(t, errors.Is(c.Upload(context.Background(), "unused", snapshotMeta), ErrMissingKey))

	c = New("http://localhost:1", "k")
	err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.json.gz"), snapshotMeta)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

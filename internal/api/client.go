// Package api uploads finished snapshots to the web frontend.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/railsim/formation/internal/storage"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/v1/snapshots/add"

	// DefaultTimeout bounds a single request, upload included.
	DefaultTimeout = 30 * time.Second
)

// ErrMissingKey is returned by Upload when the client has no API key.
var ErrMissingKey = errors.New("api key not configured")

// StatusError is a non-200 answer from the frontend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.Status, e.Body)
}

// Client handles communication with the web frontend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a client for the frontend at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Healthcheck checks that the frontend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating healthcheck request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("healthcheck", resp)
}

// Upload streams an exported snapshot to the frontend as a multipart form.
// The form carries the snapshot's counts and a sha256 of the file so the
// frontend can reject truncated uploads.
func (c *Client) Upload(ctx context.Context, filePath string, meta storage.UploadMetadata) error {
	if c.apiKey == "" {
		return ErrMissingKey
	}
	sum, err := fileChecksum(filePath)
	if err != nil {
		return err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening export: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(form, file, filepath.Base(filePath), sum, meta))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("upload", resp)
}

func (c *Client) writeForm(form *multipart.Writer, file io.Reader, name, sum string, meta storage.UploadMetadata) error {
	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"name", meta.Name},
		{"formations", strconv.Itoa(meta.Formations)},
		{"cars", strconv.Itoa(meta.Cars)},
		{"tag", meta.Tag},
		{"sha256", sum},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copying export: %w", err)
	}
	return form.Close()
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing export: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

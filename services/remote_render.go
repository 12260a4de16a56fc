package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

var (
	// ErrRemoteRenderFailed covers every way the remote service can fail,
	// including timeouts and unsuccessful envelopes.
	ErrRemoteRenderFailed = eris.New("remote render failed")
	// ErrRemoteDisabled is returned when no remote renderer is configured.
	ErrRemoteDisabled = eris.New("remote rendering disabled")
)

// remoteEndpoints maps a kind to its function path on the render service.
var remoteEndpoints = map[DocumentKind]string{
	KindDesignSpec: "generate-design-pdf",
	KindQuote:      "generate-quote-pdf",
	KindRAMS:       "generate-rams-pdf",
}

type remoteRequest struct {
	DocumentData any    `json:"documentData"`
	UserID       string `json:"userId"`
}

type remoteResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
	Error       string `json:"error"`
}

// RemoteOption configures the HTTP renderer.
type RemoteOption func(*HTTPRenderer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) RemoteOption {
	return func(r *HTTPRenderer) {
		r.http = hc
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) RemoteOption {
	return func(r *HTTPRenderer) {
		r.apiKey = key
	}
}

// HTTPRenderer calls the remote PDF service.
type HTTPRenderer struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPRenderer creates a renderer for the service at baseURL. Timeouts
// are left to the HTTP client; a timeout is reported like any other failure.
func NewHTTPRenderer(baseURL string, timeout time.Duration, opts ...RemoteOption) *HTTPRenderer {
	r := &HTTPRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render posts {documentData, userId} and returns the download URL from a
// successful envelope.
func (r *HTTPRenderer) Render(ctx context.Context, kind DocumentKind, documentData any, userID string) (string, error) {
	endpoint, ok := remoteEndpoints[kind]
	if !ok {
		return "", eris.Wrapf(ErrUnknownDocumentKind, "remote render %q", kind)
	}

	body, err := json.Marshal(remoteRequest{DocumentData: documentData, UserID: userID})
	if err != nil {
		return "", eris.Wrap(err, "remote render: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "remote render: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(ErrRemoteRenderFailed, "%s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", eris.Wrapf(ErrRemoteRenderFailed, "%s: read body: %v", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Wrapf(ErrRemoteRenderFailed, "%s: status %d: %s", endpoint, resp.StatusCode, truncate(string(raw), 200))
	}

	var envelope remoteResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", eris.Wrapf(ErrRemoteRenderFailed, "%s: decode response: %v", endpoint, err)
	}
	if !envelope.Success || envelope.DownloadURL == "" {
		return "", eris.Wrapf(ErrRemoteRenderFailed, "%s: %s", endpoint, envelope.Error)
	}
	return envelope.DownloadURL, nil
}

// DisabledRenderer always fails, sending every document to the local
// renderer.
type DisabledRenderer struct{}

// Render implements RemoteRenderer.
func (DisabledRenderer) Render(context.Context, DocumentKind, any, string) (string, error) {
	return "", ErrRemoteDisabled
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRenderer_Success(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody struct {
		DocumentData QuoteDocument `json:"documentData"`
		UserID       string        `json:"userId"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"success":true,"downloadUrl":"https://files.example.com/q.pdf"}`))
	}))
	defer srv.Close()

	q := testAssembler("AB12").AssembleQuote(nil, testSettings())
	r := NewHTTPRenderer(srv.URL+"/", time.Second, WithAPIKey("secret"))

	url, err := r.Render(context.Background(), KindQuote, &q, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "https://files.example.com/q.pdf", url)
	assert.Equal(t, "/generate-quote-pdf", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "user-1", gotBody.UserID)
	assert.Equal(t, "Q-202503-AB12", gotBody.DocumentData.QuoteNumber)
}

func TestHTTPRenderer_Endpoints(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"downloadUrl":"https://files.example.com/x.pdf"}`))
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, time.Second)
	for _, kind := range DocumentKinds {
		_, err := r.Render(context.Background(), kind, map[string]string{}, "user-1")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"/generate-design-pdf", "/generate-quote-pdf", "/generate-rams-pdf"}, paths)
}

func TestHTTPRenderer_NoAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"success":true,"downloadUrl":"https://files.example.com/x.pdf"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), KindRAMS, struct{}{}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestHTTPRenderer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unsuccessful envelope", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"template missing"}`))
		}},
		{"success without url", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			url, err := NewHTTPRenderer(srv.URL, 50*time.Millisecond).Render(context.Background(), KindRAMS, struct{}{}, "user-1")
			assert.ErrorIs(t, err, ErrRemoteRenderFailed)
			assert.Empty(t, url)
		})
	}
}

func TestHTTPRenderer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewHTTPRenderer(base, time.Second).Render(context.Background(), KindQuote, struct{}{}, "user-1")
	assert.ErrorIs(t, err, ErrRemoteRenderFailed)
}

func TestHTTPRenderer_UnknownKind(t *testing.T) {
	_, err := NewHTTPRenderer("http://127.0.0.1:1", time.Second).Render(context.Background(), DocumentKind("invoice"), nil, "user-1")
	assert.ErrorIs(t, err, ErrUnknownDocumentKind)
}

func TestHTTPRenderer_CustomClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"downloadUrl":"https://files.example.com/x.pdf"}`))
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, 0, WithHTTPClient(srv.Client()))
	_, err := r.Render(context.Background(), KindDesignSpec, struct{}{}, "user-1")
	assert.NoError(t, err)
}

func TestDisabledRenderer(t *testing.T) {
	_, err := DisabledRenderer{}.Render(context.Background(), KindQuote, nil, "user-1")
	assert.ErrorIs(t, err, ErrRemoteDisabled)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "boom", 10, "boom"},
		{"ascii", "abcdef", 3, "abc..."},
		{"cut inside pound sign", "a££", 2, "a..."},
		{"cut after pound sign", "a££", 3, "a£..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.n))
		})
	}

	got := truncate(strings.Repeat("£", 150), 200)
	assert.True(t, utf8.ValidString(got), "truncated body is not valid UTF-8")
	assert.Equal(t, strings.Repeat("£", 100)+"...", got)
}

func TestHTTPRenderer_ErrorBodyKeepsValidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "x"+strings.Repeat("£", 150), http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), KindQuote, struct{}{}, "user-1")
	require.ErrorIs(t, err, ErrRemoteRenderFailed)
	assert.True(t, utf8.ValidString(err.Error()))
}

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient(ClientOptions{
		APIKey:   "test-key",
		BaseURL:  serverURL,
		MaxRetry: time.Millisecond,
	})
}

func TestAnalyzeExtractsFirstCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key query param = %q", r.URL.Query().Get("key"))
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "analyze this" {
			t.Errorf("prompt not carried through: %+v", req.Contents)
		}
		if req.GenerationConfig.Temperature != temperature {
			t.Errorf("temperature = %v", req.GenerationConfig.Temperature)
		}

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"losers\":[]}"}]}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	text, err := c.Analyze(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if text != `{"losers":[]}` {
		t.Errorf("text = %q", text)
	}
}

func TestAnalyzeFailsFastWithoutKey(t *testing.T) {
	c := NewClient(ClientOptions{})
	if _, err := c.Analyze(context.Background(), "p"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":400,"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Analyze(context.Background(), "p"); err == nil {
		t.Fatal("expected error on 400")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (no retries on client error)", n)
	}
}

func TestAnalyzeRejectsEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Analyze(context.Background(), "p"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

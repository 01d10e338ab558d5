package exporter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func writePayloadFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPublishSkipsWhenUnconfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := NewPublisher(PublisherOptions{BaseURL: srv.URL})
	if err := p.Publish(context.Background(), writePayloadFile(t, "{}")); err != nil {
		t.Fatalf("unconfigured publish must be a no-op, got: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("no requests expected without credentials, got %d", calls.Load())
	}
}

func TestPublishCreatesNewFile(t *testing.T) {
	var put contentsPutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/frontend/contents/data.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "token secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&put); err != nil {
				t.Errorf("decoding PUT body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	p := NewPublisher(PublisherOptions{Token: "secret", Repo: "acme/frontend", BaseURL: srv.URL})
	if err := p.Publish(context.Background(), writePayloadFile(t, `{"today":{}}`)); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(put.Content)
	if err != nil {
		t.Fatalf("content is not base64: %v", err)
	}
	if string(decoded) != `{"today":{}}` {
		t.Errorf("uploaded content = %q", decoded)
	}
	if put.SHA != "" {
		t.Errorf("new file must be created without a SHA, got %q", put.SHA)
	}
	if put.Message == "" {
		t.Error("commit message missing")
	}
}

func TestPublishUpdatesExistingFile(t *testing.T) {
	var put contentsPutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"sha":"abc123"}`))
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&put); err != nil {
				t.Errorf("decoding PUT body: %v", err)
			}
		}
	}))
	defer srv.Close()

	p := NewPublisher(PublisherOptions{Token: "secret", Repo: "acme/frontend", BaseURL: srv.URL})
	if err := p.Publish(context.Background(), writePayloadFile(t, "{}")); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if put.SHA != "abc123" {
		t.Errorf("update must carry the existing blob SHA, got %q", put.SHA)
	}
}

func TestPublishReportsPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
		}
	}))
	defer srv.Close()

	p := NewPublisher(PublisherOptions{Token: "secret", Repo: "acme/frontend", BaseURL: srv.URL})
	if err := p.Publish(context.Background(), writePayloadFile(t, "{}")); err == nil {
		t.Fatal("expected error when the push is rejected")
	}
}

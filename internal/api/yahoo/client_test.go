package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chartBody(timestamps []int64, closes []any, volumes []any) string {
	payload := map[string]any{
		"chart": map[string]any{
			"result": []any{
				map[string]any{
					"timestamp": timestamps,
					"indicators": map[string]any{
						"quote":    []any{map[string]any{"volume": volumes}},
						"adjclose": []any{map[string]any{"adjclose": closes}},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientOptions{BaseURL: server.URL, Timeout: 2 * time.Second}), server
}

func TestHistoryParsesChart(t *testing.T) {
	var gotUA, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(chartBody(
			[]int64{1, 2, 3, 4, 5, 6},
			[]any{100.0, 101.0, nil, 102.0, 103.0, 104.0},
			[]any{1000.0, 1100.0, 900.0, nil, 1200.0, 1300.0},
		)))
	})

	s, err := client.History(context.Background(), "AAPL", 90)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if gotPath != "/v8/finance/chart/AAPL" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if !strings.Contains(gotUA, "Chrome") {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
	// Null close dropped; null volume becomes 0.
	if len(s.Closes) != 5 || len(s.Volumes) != 5 {
		t.Fatalf("expected 5 aligned points, got %d closes / %d volumes", len(s.Closes), len(s.Volumes))
	}
	if s.Volumes[2] != 0 {
		t.Errorf("null volume should be 0, got %v", s.Volumes[2])
	}
	if s.Synthetic {
		t.Error("primary series must not be flagged synthetic")
	}
}

func TestHistoryRejectsThinSeries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartBody(
			[]int64{1, 2, 3},
			[]any{100.0, 101.0, 102.0},
			[]any{1000.0, 1000.0, 1000.0},
		)))
	})

	if _, err := client.History(context.Background(), "RKLB", 90); err == nil {
		t.Fatal("expected error for fewer than 5 usable points")
	}
}

func TestHistoryRejectsNon200(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.History(context.Background(), "TSLA", 90); err == nil {
		t.Fatal("expected error on 429")
	}
	if calls != 1 {
		t.Errorf("primary adapter must not retry internally, made %d calls", calls)
	}
}

func TestCloseOnPicksLastAtOrBeforeTarget(t *testing.T) {
	target := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	cutoff := target.Unix() + 86400

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartBody(
			[]int64{cutoff - 200000, cutoff - 100000, cutoff - 10, cutoff + 100000, cutoff + 200000},
			[]any{95.0, 96.0, 97.5, 99.0, 100.0},
			[]any{1.0, 1.0, 1.0, 1.0, 1.0},
		)))
	})

	got, err := client.CloseOn(context.Background(), "JPM", target)
	if err != nil {
		t.Fatalf("CloseOn() error: %v", err)
	}
	if got != 97.5 {
		t.Errorf("CloseOn() = %v, want 97.5", got)
	}
}

func TestRecentClosesAllowsShortSeries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartBody(
			[]int64{1, 2},
			[]any{6100.0, 6150.0},
			[]any{0.0, 0.0},
		)))
	})

	closes, err := client.RecentCloses(context.Background(), "^GSPC", 5)
	if err != nil {
		t.Fatalf("RecentCloses() error: %v", err)
	}
	if len(closes) != 2 {
		t.Fatalf("expected 2 closes, got %d", len(closes))
	}
}

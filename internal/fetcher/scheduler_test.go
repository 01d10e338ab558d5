package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/funmusicgames1/stockcast-backend/models"
)

func risingSeries(ticker string, n int) *models.Series {
	s := &models.Series{Ticker: ticker}
	for i := 0; i < n; i++ {
		s.Closes = append(s.Closes, 100+float64(i))
		s.Volumes = append(s.Volumes, 1000)
	}
	return s
}

type fakePrimary struct {
	fail  map[string]bool
	calls map[string]int
}

func (f *fakePrimary) History(ctx context.Context, ticker string, days int) (*models.Series, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ticker]++
	if f.fail[ticker] {
		return nil, errors.New("blocked")
	}
	return risingSeries(ticker, 30), nil
}

func (f *fakePrimary) CloseOn(ctx context.Context, ticker string, target time.Time) (float64, error) {
	return 0, errors.New("not implemented")
}

type fakeFallback struct {
	noKey        bool
	restricted   bool
	batchServes  map[string]bool
	quoteServes  map[string]bool
	historyHits  map[string]bool
	batchCalls   int
	quoteCalls   map[string]int
	historyCalls map[string]int
}

func (f *fakeFallback) HasKey() bool { return !f.noKey }

func (f *fakeFallback) QuoteBatch(ctx context.Context, tickers []string) (map[string]*models.Series, bool, error) {
	f.batchCalls++
	if f.restricted {
		return map[string]*models.Series{}, true, nil
	}
	out := map[string]*models.Series{}
	for _, t := range tickers {
		if f.batchServes[t] {
			s := risingSeries(t, 22)
			s.Synthetic = true
			out[t] = s
		}
	}
	return out, false, nil
}

func (f *fakeFallback) Quote(ctx context.Context, ticker string) (*models.Series, error) {
	if f.quoteCalls == nil {
		f.quoteCalls = map[string]int{}
	}
	f.quoteCalls[ticker]++
	if f.quoteServes[ticker] {
		s := risingSeries(ticker, 22)
		s.Synthetic = true
		return s, nil
	}
	return nil, errors.New("no quote")
}

func (f *fakeFallback) History(ctx context.Context, ticker string, days int) (*models.Series, error) {
	if f.historyCalls == nil {
		f.historyCalls = map[string]int{}
	}
	f.historyCalls[ticker]++
	if f.historyHits[ticker] {
		return risingSeries(ticker, 60), nil
	}
	return nil, errors.New("no history")
}

func newTestScheduler(primary PrimarySource, fallback FallbackSource, universe []string, threshold int) *Scheduler {
	return New(primary, fallback, Options{
		Universe:       universe,
		AbortThreshold: threshold,
		BatchSize:      5,
		Sleep:          func(time.Duration) {},
	})
}

func TestFetchAllResolvedByPrimarySkipsFallback(t *testing.T) {
	primary := &fakePrimary{}
	fallback := &fakeFallback{}
	s := newTestScheduler(primary, fallback, []string{"AAPL", "MSFT", "GOOGL"}, 100)

	metrics, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("expected 3 resolved, got %d", len(metrics))
	}
	if fallback.batchCalls != 0 {
		t.Error("fallback must not be invoked when primary resolves everything")
	}
	for _, ticker := range []string{"AAPL", "MSFT", "GOOGL"} {
		if primary.calls[ticker] != 1 {
			t.Errorf("%s attempted %d times on primary, want exactly 1", ticker, primary.calls[ticker])
		}
	}
}

func TestFetchAllRecoversThroughFallbackModes(t *testing.T) {
	primary := &fakePrimary{fail: map[string]bool{"HOOD": true, "GME": true, "AMC": true}}
	fallback := &fakeFallback{
		batchServes: map[string]bool{"HOOD": true},
		historyHits: map[string]bool{"GME": true},
	}
	s := newTestScheduler(primary, fallback, []string{"AAPL", "HOOD", "GME", "AMC"}, 100)

	metrics, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("expected 3 resolved, got %d", len(metrics))
	}
	if !metrics["HOOD"].Synthetic {
		t.Error("quote-mode recovery should carry the synthetic flag")
	}
	if metrics["GME"].Synthetic {
		t.Error("history-mode recovery is a real series")
	}
	if _, ok := metrics["AMC"]; ok {
		t.Error("AMC failed everywhere and must be absent")
	}
	// One fallback attempt sequence per instrument: GME got batch (miss)
	// then history (hit); no quote calls since batch was not restricted.
	if fallback.quoteCalls["GME"] != 0 {
		t.Error("per-instrument quote mode should only run after a tier restriction")
	}
	if fallback.historyCalls["HOOD"] != 0 {
		t.Error("history mode must not run for instruments the batch already resolved")
	}
}

func TestFetchAllSwitchesToQuoteModeWhenRestricted(t *testing.T) {
	primary := &fakePrimary{fail: map[string]bool{"SOFI": true, "UPST": true}}
	fallback := &fakeFallback{
		restricted:  true,
		quoteServes: map[string]bool{"SOFI": true, "UPST": true},
	}
	s := newTestScheduler(primary, fallback, []string{"SOFI", "UPST"}, 100)

	metrics, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected 2 resolved, got %d", len(metrics))
	}
	if fallback.quoteCalls["SOFI"] != 1 || fallback.quoteCalls["UPST"] != 1 {
		t.Errorf("expected one quote call each after restriction, got %v", fallback.quoteCalls)
	}
}

func TestFetchAllAbortThreshold(t *testing.T) {
	makeUniverse := func(failing int) ([]string, map[string]bool) {
		var universe []string
		fail := map[string]bool{}
		for i := 0; i < failing; i++ {
			ticker := fmt.Sprintf("F%03d", i)
			universe = append(universe, ticker)
			fail[ticker] = true
		}
		universe = append(universe, "AAPL")
		return universe, fail
	}

	t.Run("exactly at threshold continues", func(t *testing.T) {
		universe, fail := makeUniverse(100)
		s := newTestScheduler(&fakePrimary{fail: fail}, &fakeFallback{}, universe, 100)
		metrics, err := s.FetchAll(context.Background())
		if err != nil {
			t.Fatalf("FetchAll() error at threshold: %v", err)
		}
		if len(metrics) != 1 {
			t.Fatalf("expected 1 resolved, got %d", len(metrics))
		}
	})

	t.Run("above threshold aborts", func(t *testing.T) {
		universe, fail := makeUniverse(101)
		s := newTestScheduler(&fakePrimary{fail: fail}, &fakeFallback{}, universe, 100)
		_, err := s.FetchAll(context.Background())
		if !errors.Is(err, ErrTooManyFailures) {
			t.Fatalf("expected ErrTooManyFailures, got %v", err)
		}
	})

	t.Run("no fallback key still counts failures", func(t *testing.T) {
		universe, fail := makeUniverse(101)
		s := newTestScheduler(&fakePrimary{fail: fail}, &fakeFallback{noKey: true}, universe, 100)
		if _, err := s.FetchAll(context.Background()); !errors.Is(err, ErrTooManyFailures) {
			t.Fatalf("expected ErrTooManyFailures, got %v", err)
		}
	})
}

// Package yahoo implements the primary price source against the Yahoo
// Finance v8 chart API. The upstream blocks naive automated clients, so every
// request carries an ordinary browser's header fingerprint.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/internal/indicators"
	"github.com/funmusicgames1/stockcast-backend/models"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"

	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// Client is the Yahoo Finance chart API client. It performs exactly one
// request per call and never retries internally; retry and pacing decisions
// belong to the fetch scheduler.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Yahoo client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new Yahoo Finance client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}

	return &Client{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: log.With().Str("component", "yahoo_client").Logger(),
	}
}

// chartResponse mirrors the chart API payload. Closes and volumes arrive as
// nullable arrays aligned with the timestamps.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				Adjclose []struct {
					Adjclose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://finance.yahoo.com/")
	req.Header.Set("Origin", "https://finance.yahoo.com")
}

// chart fetches raw timestamps, adjusted closes and volumes for one ticker
// over [start, end]. Null closes are dropped together with their volume.
func (c *Client) chart(ctx context.Context, ticker string, start, end time.Time) ([]int64, []float64, []float64, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")
	q.Set("events", "div,splits")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, nil, fmt.Errorf("non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Chart.Error != nil {
		return nil, nil, nil, fmt.Errorf("chart API error: %s (%s)", data.Chart.Error.Code, data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 {
		return nil, nil, nil, fmt.Errorf("empty chart result")
	}

	r := data.Chart.Result[0]
	if len(r.Indicators.Adjclose) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, nil, nil, fmt.Errorf("missing indicators in chart result")
	}

	rawCloses := r.Indicators.Adjclose[0].Adjclose
	rawVolumes := r.Indicators.Quote[0].Volume

	var (
		timestamps []int64
		closes     []float64
		volumes    []float64
	)
	for i, cl := range rawCloses {
		if cl == nil {
			continue
		}
		closes = append(closes, *cl)
		var v float64
		if i < len(rawVolumes) && rawVolumes[i] != nil {
			v = *rawVolumes[i]
		}
		volumes = append(volumes, v)
		if i < len(r.Timestamp) {
			timestamps = append(timestamps, r.Timestamp[i])
		} else {
			timestamps = append(timestamps, 0)
		}
	}

	return timestamps, closes, volumes, nil
}

// History fetches the recent daily series for one ticker. It fails on fewer
// than the minimum usable points rather than returning a degenerate series.
func (c *Client) History(ctx context.Context, ticker string, days int) (*models.Series, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	_, closes, volumes, err := c.chart(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	if len(closes) < indicators.MinPoints {
		return nil, fmt.Errorf("only %d usable points for %s", len(closes), ticker)
	}

	c.logger.Debug().Str("ticker", ticker).Int("points", len(closes)).Msg("Fetched history")
	return &models.Series{Ticker: ticker, Closes: closes, Volumes: volumes}, nil
}

// CloseOn returns the last adjusted close at or before the end of the target
// day. Used when grading yesterday's predictions against realized moves.
func (c *Client) CloseOn(ctx context.Context, ticker string, target time.Time) (float64, error) {
	start := target.AddDate(0, 0, -5)
	end := target.AddDate(0, 0, 2)
	cutoff := target.Unix() + 86400

	timestamps, closes, _, err := c.chart(ctx, ticker, start, end)
	if err != nil {
		return 0, err
	}

	var best float64
	found := false
	for i, ts := range timestamps {
		if ts <= cutoff {
			best = closes[i]
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("no close at or before %s for %s", target.Format("2006-01-02"), ticker)
	}
	return best, nil
}

// RecentCloses returns up to the last few daily closes for one symbol.
// Unlike History it has no minimum-length requirement; index snapshots only
// need two points.
func (c *Client) RecentCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	_, closes, _, err := c.chart(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no closes returned for %s", symbol)
	}
	return closes, nil
}

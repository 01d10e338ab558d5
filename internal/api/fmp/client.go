// Package fmp implements the fallback price source against the Financial
// Modeling Prep API. It serves only instruments the primary source could not
// resolve, in two modes: a bulk quote endpoint (paid tier) and per-instrument
// requests when the bulk endpoint is tier-restricted.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/internal/indicators"
	"github.com/funmusicgames1/stockcast-backend/internal/platform/httpclient"
	"github.com/funmusicgames1/stockcast-backend/models"
)

const (
	defaultBaseURL = "https://financialmodelingprep.com/api/v3"

	// bulkChunkSize bounds how many symbols go into one bulk quote call.
	bulkChunkSize = 50

	// syntheticHistoryLen is the flat-history length replayed from a single
	// quote so the metric engine sees a full monthly lookback.
	syntheticHistoryLen = 21
)

// ErrNoAPIKey is returned when the fallback source is invoked without a
// configured FMP key.
var ErrNoAPIKey = errors.New("FMP_API_KEY not set")

// Client is the Financial Modeling Prep API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new FMP client.
type ClientOptions struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec int
}

// NewClient creates a new FMP API client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		httpClient: httpclient.New(httpclient.Options{
			Timeout:        opts.Timeout,
			RequestsPerSec: opts.RequestsPerSec,
		}),
		logger: log.With().Str("component", "fmp_client").Logger(),
	}
}

// HasKey reports whether the client is usable at all.
func (c *Client) HasKey() bool { return c.apiKey != "" }

// quoteItem is one entry of the /quote response.
type quoteItem struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Volume        float64 `json:"volume"`
	AvgVolume     float64 `json:"avgVolume"`
}

// syntheticSeries rebuilds a metric-engine-compatible series from a single
// quote: the previous close replayed as flat history plus the current point.
// Lower fidelity than real bars, flagged as such.
func syntheticSeries(item quoteItem) *models.Series {
	avgVol := item.AvgVolume
	if avgVol == 0 {
		avgVol = item.Volume
		if avgVol == 0 {
			avgVol = 1
		}
	}

	s := &models.Series{Ticker: item.Symbol, Synthetic: true}
	for i := 0; i < syntheticHistoryLen; i++ {
		s.Closes = append(s.Closes, item.PreviousClose)
		s.Volumes = append(s.Volumes, avgVol)
	}
	s.Closes = append(s.Closes, item.Price)
	s.Volumes = append(s.Volumes, item.Volume)
	return s
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// isRestricted reports whether err is the bulk endpoint's tier rejection.
func isRestricted(err error) bool {
	var statusErr *httpclient.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden
}

// QuoteBatch fetches quotes for many tickers via the bulk endpoint, in
// chunks. The second return value reports a tier restriction (HTTP 403), in
// which case the caller must switch to per-instrument requests for whatever
// is still missing.
func (c *Client) QuoteBatch(ctx context.Context, tickers []string) (map[string]*models.Series, bool, error) {
	if !c.HasKey() {
		return nil, false, ErrNoAPIKey
	}

	results := make(map[string]*models.Series)

	for i := 0; i < len(tickers); i += bulkChunkSize {
		end := i + bulkChunkSize
		if end > len(tickers) {
			end = len(tickers)
		}
		chunk := tickers[i:end]

		body, err := c.get(ctx, "/quote/"+url.PathEscape(strings.Join(chunk, ",")), url.Values{})
		if err != nil {
			if isRestricted(err) {
				c.logger.Warn().Msg("Bulk quote endpoint returned 403, switching to individual requests")
				return results, true, nil
			}
			c.logger.Warn().Err(err).Int("chunk", i/bulkChunkSize).Msg("Bulk quote fetch failed")
			continue
		}

		var items []quoteItem
		if err := json.Unmarshal(body, &items); err != nil {
			c.logger.Warn().Err(err).Msg("Error parsing bulk quote JSON")
			continue
		}

		for _, item := range items {
			if item.Symbol == "" || item.Price == 0 || item.PreviousClose == 0 {
				continue
			}
			results[item.Symbol] = syntheticSeries(item)
		}
	}

	return results, false, nil
}

// Quote fetches a single ticker quote and synthesizes a series from it.
func (c *Client) Quote(ctx context.Context, ticker string) (*models.Series, error) {
	if !c.HasKey() {
		return nil, ErrNoAPIKey
	}

	body, err := c.get(ctx, "/quote/"+url.PathEscape(ticker), url.Values{})
	if err != nil {
		return nil, err
	}

	var items []quoteItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty quote for %s", ticker)
	}

	item := items[0]
	if item.Price == 0 || item.PreviousClose == 0 {
		return nil, fmt.Errorf("incomplete quote for %s", ticker)
	}
	if item.Symbol == "" {
		item.Symbol = ticker
	}

	return syntheticSeries(item), nil
}

// historyResponse is the /historical-price-full payload. FMP returns bars
// newest first.
type historyResponse struct {
	Historical []struct {
		Date     string  `json:"date"`
		AdjClose float64 `json:"adjClose"`
		Volume   float64 `json:"volume"`
	} `json:"historical"`
}

// History fetches real daily bars for a single ticker, chronological order.
// This is the higher-fidelity fallback used when the quote modes come up
// short.
func (c *Client) History(ctx context.Context, ticker string, days int) (*models.Series, error) {
	if !c.HasKey() {
		return nil, ErrNoAPIKey
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("from", start.Format("2006-01-02"))
	params.Set("to", end.Format("2006-01-02"))

	body, err := c.get(ctx, "/historical-price-full/"+url.PathEscape(ticker), params)
	if err != nil {
		return nil, err
	}

	var data historyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	s := &models.Series{Ticker: ticker}
	for i := len(data.Historical) - 1; i >= 0; i-- {
		bar := data.Historical[i]
		if bar.AdjClose == 0 {
			continue
		}
		s.Closes = append(s.Closes, bar.AdjClose)
		s.Volumes = append(s.Volumes, bar.Volume)
	}
	if len(s.Closes) < indicators.MinPoints {
		return nil, fmt.Errorf("only %d usable points for %s", len(s.Closes), ticker)
	}

	c.logger.Debug().Str("ticker", ticker).Int("points", len(s.Closes)).Msg("Fetched history")
	return s, nil
}

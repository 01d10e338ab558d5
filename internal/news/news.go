// Package news collects recent market headlines from NewsAPI for the
// analysis prompt. Headlines are flavor, not ground truth: every failure
// here degrades to an empty digest instead of blocking the pipeline.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/internal/platform/httpclient"
	"github.com/funmusicgames1/stockcast-backend/models"
)

const (
	defaultBaseURL = "https://newsapi.org"
	lookbackDays   = 2
	macroPageSize  = 10
	maxMacro       = 20
	sectorPageSize = 5
)

var macroQueries = []string{
	"stock market economy federal reserve",
	"geopolitical trade war tariffs inflation",
}

var sectorQueries = map[string]string{
	"technology": "tech stocks AI semiconductors earnings",
	"energy":     "oil energy stocks OPEC",
	"healthcare": "pharma biotech FDA approval",
	"finance":    "bank stocks earnings interest rates",
}

// Client fetches headlines from NewsAPI.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
	now        func() time.Time
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Client.
type ClientOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new NewsAPI client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		httpClient: httpclient.New(httpclient.Options{
			Timeout:        opts.Timeout,
			RequestsPerSec: 2,
		}),
		now:    time.Now,
		logger: log.With().Str("component", "news").Logger(),
	}
}

type articlesResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title string `json:"title"`
	} `json:"articles"`
}

// Digest gathers macro and per-sector headlines for the prompt. Any query
// failure is logged and skipped; with no key configured the digest is simply
// empty.
func (c *Client) Digest(ctx context.Context) *models.NewsDigest {
	digest := &models.NewsDigest{Sector: make(map[string][]string)}
	if c.apiKey == "" {
		c.logger.Warn().Msg("No API key configured, running without news context")
		return digest
	}

	for _, q := range macroQueries {
		titles, err := c.headlines(ctx, q, macroPageSize)
		if err != nil {
			c.logger.Warn().Str("query", q).Err(err).Msg("Macro query failed")
			continue
		}
		digest.Macro = append(digest.Macro, titles...)
	}
	if len(digest.Macro) > maxMacro {
		digest.Macro = digest.Macro[:maxMacro]
	}

	for sector, q := range sectorQueries {
		titles, err := c.headlines(ctx, q, sectorPageSize)
		if err != nil {
			c.logger.Warn().Str("sector", sector).Err(err).Msg("Sector query failed")
			continue
		}
		if len(titles) > 0 {
			digest.Sector[sector] = titles
		}
	}

	c.logger.Info().
		Int("macro", len(digest.Macro)).
		Int("sectors", len(digest.Sector)).
		Msg("News digest assembled")
	return digest
}

func (c *Client) headlines(ctx context.Context, query string, pageSize int) ([]string, error) {
	from := c.now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from)
	params.Set("language", "en")
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed articlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	titles := make([]string, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		// NewsAPI tombstones deleted articles instead of omitting them.
		if a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		titles = append(titles, a.Title)
	}
	return titles, nil
}

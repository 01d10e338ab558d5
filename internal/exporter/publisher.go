package exporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultGitHubAPI = "https://api.github.com"

// Publisher uploads the frontend payload to a GitHub repo via the contents
// API, so the static frontend redeploys with fresh predictions after every
// run. Unconfigured credentials disable it; a push failure is reported to the
// caller but must never fail the run.
type Publisher struct {
	token      string
	repo       string
	remotePath string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

// PublisherOptions holds options for creating a Publisher.
type PublisherOptions struct {
	Token      string
	Repo       string // owner/name
	RemotePath string
	BaseURL    string
	Timeout    time.Duration
}

// NewPublisher creates a publisher for the given repo.
func NewPublisher(opts PublisherOptions) *Publisher {
	if opts.RemotePath == "" {
		opts.RemotePath = "data.json"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGitHubAPI
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "publisher").Logger()
	if opts.Token == "" || opts.Repo == "" {
		logger.Warn().Msg("GITHUB_TOKEN or GITHUB_REPO not set, skipping GitHub push")
	}

	return &Publisher{
		token:      opts.Token,
		repo:       opts.Repo,
		remotePath: opts.RemotePath,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		now:        time.Now,
		logger:     logger,
	}
}

// Enabled reports whether credentials are configured.
func (p *Publisher) Enabled() bool {
	return p.token != "" && p.repo != ""
}

type contentsPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

// Publish uploads the file at localPath to the configured repo, updating in
// place when it already exists. Unconfigured credentials are a silent no-op.
func (p *Publisher) Publish(ctx context.Context, localPath string) error {
	if !p.Enabled() {
		return nil
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}

	apiURL := fmt.Sprintf("%s/repos/%s/contents/%s", p.baseURL, p.repo, p.remotePath)

	// The contents API needs the current blob SHA to update an existing file.
	sha, err := p.currentSHA(ctx, apiURL)
	if err != nil {
		return err
	}

	body, err := json.Marshal(contentsPutRequest{
		Message: "Update predictions " + p.now().Format("2006-01-02"),
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("github push: status %d: %s", resp.StatusCode, detail)
	}

	p.logger.Info().Str("repo", p.repo).Str("path", p.remotePath).Msg("Payload pushed to GitHub")
	return nil
}

// currentSHA returns the existing file's blob SHA, or empty when the file
// does not exist yet.
func (p *Publisher) currentSHA(ctx context.Context, apiURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", err
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var existing struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
		return "", fmt.Errorf("github lookup: %w", err)
	}
	return existing.SHA, nil
}

func (p *Publisher) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+p.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

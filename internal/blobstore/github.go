package blobstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.github.com"

// GitHubConfig holds the settings for the GitHub contents API store.
type GitHubConfig struct {
	// Owner and Repo identify the repository holding the data files.
	Owner string
	Repo  string
	// Branch is the ref committed to. Defaults to "main".
	Branch string
	// Token is the bearer credential. Requests without a valid token fail
	// as ErrUnavailable, which routes mutations to the outbox.
	Token string
	// BaseURL overrides the API endpoint, used by tests and GHE deployments.
	BaseURL string
	// Timeout bounds each fetch/commit call. Defaults to 30s.
	Timeout time.Duration
}

// GitHub is a Store backed by the GitHub repository contents API. The
// content SHA returned by the API is the version token: commits carry the
// SHA of the blob they replace and the API rejects the write when the blob
// has moved on.
type GitHub struct {
	cfg    GitHubConfig
	client *http.Client
	logger *slog.Logger
}

// NewGitHub creates a GitHub contents API store.
func NewGitHub(cfg GitHubConfig, logger *slog.Logger) *GitHub {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type commitResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// Fetch reads the document blob at the given repository path.
func (g *GitHub) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		g.cfg.BaseURL, g.cfg.Owner, g.cfg.Repo, key, g.cfg.Branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building fetch request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetching %s: %v", ErrUnavailable, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, "", fmt.Errorf("%w: fetching %s: status %d", ErrUnavailable, key, resp.StatusCode)
	default:
		return nil, "", fmt.Errorf("%w: fetching %s: status %d", ErrUnavailable, key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading %s: %v", ErrUnavailable, key, err)
	}

	var contents contentsResponse
	if err := json.Unmarshal(body, &contents); err != nil {
		return nil, "", fmt.Errorf("decoding contents response for %s: %w", key, err)
	}

	// The API wraps base64 content at 60 columns.
	raw := strings.ReplaceAll(contents.Content, "\n", "")
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("decoding content for %s: %w", key, err)
	}

	return payload, contents.SHA, nil
}

// Commit writes the document blob, conditioned on expectedVersion (the
// content SHA observed at fetch time). GitHub reports a stale SHA as 409,
// and a missing SHA for an existing file as 422; both are CAS conflicts.
func (g *GitHub) Commit(ctx context.Context, key string, payload []byte, expectedVersion, message string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		g.cfg.BaseURL, g.cfg.Owner, g.cfg.Repo, key)

	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(payload),
		"branch":  g.cfg.Branch,
	}
	if expectedVersion != "" {
		body["sha"] = expectedVersion
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding commit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("building commit request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: committing %s: %v", ErrUnavailable, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: committing %s", ErrConflict, key)
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("%w: committing %s: status %d", ErrUnavailable, key, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: committing %s: status %d", ErrUnavailable, key, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading commit response for %s: %v", ErrUnavailable, key, err)
	}

	var commit commitResponse
	if err := json.Unmarshal(respBody, &commit); err != nil {
		return "", fmt.Errorf("decoding commit response for %s: %w", key, err)
	}

	g.logger.Debug("committed document", "key", key, "version", commit.Content.SHA)
	return commit.Content.SHA, nil
}

func (g *GitHub) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}
}

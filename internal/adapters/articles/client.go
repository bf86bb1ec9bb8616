package articles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/atlascope/internal/domain"
)

// DefaultBaseURL is the public atlas article service.
const DefaultBaseURL = "https://sky-atlas.powerhouse.io"

// DefaultTimeout bounds one article request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps decoded response bodies.
const maxResponseBytes = 4 << 20

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client lists articles for one scope over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *charmLog.Logger
}

// NewClient constructs an article client. Nil httpClient and logger fall back to defaults.
func NewClient(cfg Config, httpClient *http.Client, logger *charmLog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = charmLog.Default()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    httpClient,
		logger:  logger,
	}
}

// FetchArticles returns the articles for scope.
// Every failure is logged and turned into an empty list; callers never see an error.
func (c *Client) FetchArticles(ctx context.Context, scope string) []domain.Article {
	articles, err := c.fetch(ctx, scope)
	if err != nil {
		c.logger.Error("fetch articles failed", "scope", scope, "err", err)
		return []domain.Article{}
	}
	return articles
}

// fetch performs one request without the empty-on-failure policy.
func (c *Client) fetch(ctx context.Context, scope string) ([]domain.Article, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/api/scopes/" + url.PathEscape(scope) + "/articles"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build articles request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("articles request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("articles returned %s", resp.Status)
	}

	var articles []domain.Article
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&articles); err != nil {
		return nil, fmt.Errorf("decode articles response: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	return articles, nil
}

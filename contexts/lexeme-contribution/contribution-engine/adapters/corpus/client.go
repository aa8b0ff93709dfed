package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	defaultUserAgent = "lexcontrib/1.0"
	defaultTimeout   = 20 * time.Second
	maxResponseBytes = 8 << 20
)

var (
	ErrEntityMissing  = errors.New("corpus entity missing")
	ErrInvalidID      = errors.New("invalid corpus identifier")
	ErrAnonymousToken = errors.New("corpus returned an anonymous token")
)

// APIError is an error object returned by the action API.
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("corpus api error %s: %s", e.Code, e.Info)
}

type Config struct {
	SPARQLEndpoint string
	APIEndpoint    string
	UserAgent      string
	Timeout        time.Duration
}

// Client talks to a Wikibase-style corpus: the SPARQL endpoint serves
// candidate batches, the action API serves entity documents and writes.
type Client struct {
	httpClient *http.Client
	sparqlURL  string
	apiURL     string
	userAgent  string
	logger     *slog.Logger
	seed       func() string
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		sparqlURL:  cfg.SPARQLEndpoint,
		apiURL:     cfg.APIEndpoint,
		userAgent:  userAgent,
		logger:     logger,
		seed:       uuid.NewString,
	}
}

func (c *Client) sparql(ctx context.Context, query string) (gjson.Result, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sparqlURL+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	request.Header.Set("Accept", "application/sparql-results+json")
	return c.do(request, "sparql")
}

func (c *Client) apiGet(ctx context.Context, params url.Values, accessToken string) (gjson.Result, error) {
	params.Set("format", "json")
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.api(request, params.Get("action"))
}

func (c *Client) apiPost(ctx context.Context, params url.Values, accessToken string) (gjson.Result, error) {
	params.Set("format", "json")
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return gjson.Result{}, err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.api(request, params.Get("action"))
}

func (c *Client) api(request *http.Request, action string) (gjson.Result, error) {
	body, err := c.do(request, action)
	if err != nil {
		return gjson.Result{}, err
	}
	if apiErr := body.Get("error"); apiErr.Exists() {
		return gjson.Result{}, &APIError{
			Code: apiErr.Get("code").String(),
			Info: apiErr.Get("info").String(),
		}
	}
	return body, nil
}

func (c *Client) do(request *http.Request, operation string) (gjson.Result, error) {
	request.Header.Set("User-Agent", c.userAgent)
	started := time.Now()

	response, err := c.httpClient.Do(request)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("corpus %s request: %w", operation, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("corpus %s read: %w", operation, err)
	}
	if response.StatusCode != http.StatusOK {
		c.logger.Warn("corpus request rejected",
			"event", "corpus_request_rejected",
			"module", "lexeme-contribution/contribution-engine",
			"layer", "adapter",
			"operation", operation,
			"status", response.StatusCode,
		)
		return gjson.Result{}, fmt.Errorf("corpus %s returned status %d", operation, response.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("corpus %s returned invalid json", operation)
	}

	c.logger.Debug("corpus request completed",
		"event", "corpus_request_completed",
		"module", "lexeme-contribution/contribution-engine",
		"layer", "adapter",
		"operation", operation,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return gjson.ParseBytes(body), nil
}

package papersources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// maxResponseBytes bounds every upstream response body.
const maxResponseBytes = 10 << 20

// DefaultUserAgent is sent when neither the config nor the request sets one.
const DefaultUserAgent = "Helixir-EvidenceSearch/1.0"

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Headers are added to every request that does not already set them.
	// Some registries reject clients that do not look like a browser.
	Headers map[string]string
}

// HTTPClient wraps http.Client with rate limiting and default headers.
// Each request is attempted exactly once; a failed call is final.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new rate-limited HTTP client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request after waiting for the rate limiter.
// It sets the User-Agent and the configured default headers. Credentials are
// the adapters' concern and travel as query parameters.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for name, value := range c.config.Headers {
		if req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Get performs a GET request and returns the response body of a 2xx response.
// Any other status is reported as a *domain.ExternalAPIError tagged with source;
// a 429 additionally carries a *domain.RateLimitError as its cause.
func (c *HTTPClient) Get(ctx context.Context, source, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var cause error
		if resp.StatusCode == http.StatusTooManyRequests {
			cause = domain.NewRateLimitError(source, retryAfter(resp))
		}
		return nil, domain.NewExternalAPIError(source, resp.StatusCode, truncate(string(body), 512), cause)
	}

	return body, nil
}

// retryAfter reports the server's Retry-After hint, or zero when absent.
// It accepts both delay-seconds and HTTP-date forms.
func retryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Package spellcheck corrects misspelled medical terms in search queries
// using the NCBI ESpell service.
package spellcheck

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/evidence-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTimeout bounds a single ESpell call.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit matches the unauthenticated E-utilities allowance.
	DefaultRateLimit = 3.0

	serviceName = "ESpell"
)

// Suggester proposes a spelling for a term. An empty suggestion means
// no correction is available.
type Suggester interface {
	Suggest(ctx context.Context, term string) (string, error)
}

// ESpellConfig configures the ESpell client.
type ESpellConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
}

func (c *ESpellConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// eSpellResult is the espell.fcgi response document.
type eSpellResult struct {
	XMLName        xml.Name `xml:"eSpellResult"`
	Database       string   `xml:"Database"`
	Query          string   `xml:"Query"`
	CorrectedQuery string   `xml:"CorrectedQuery"`
	ERROR          string   `xml:"ERROR"`
}

// ESpellClient implements Suggester against espell.fcgi.
type ESpellClient struct {
	config     ESpellConfig
	httpClient *papersources.HTTPClient
}

var _ Suggester = (*ESpellClient)(nil)

// NewESpellClient creates an ESpell client.
func NewESpellClient(cfg ESpellConfig) *ESpellClient {
	cfg.applyDefaults()
	return &ESpellClient{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: 1,
		}),
	}
}

// NewESpellClientWithHTTPClient creates an ESpell client with a custom HTTP client.
func NewESpellClientWithHTTPClient(cfg ESpellConfig, httpClient *papersources.HTTPClient) *ESpellClient {
	cfg.applyDefaults()
	return &ESpellClient{
		config:     cfg,
		httpClient: httpClient,
	}
}

// HTTPClient returns the client used for espell.fcgi calls.
func (c *ESpellClient) HTTPClient() *papersources.HTTPClient {
	return c.httpClient
}

// Suggest returns ESpell's corrected query for term, trimmed.
func (c *ESpellClient) Suggest(ctx context.Context, term string) (string, error) {
	u, err := url.Parse(c.config.BaseURL + "/espell.fcgi")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := c.httpClient.Get(ctx, serviceName, u.String())
	if err != nil {
		return "", err
	}

	var result eSpellResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: espell: %w", papersources.ErrMalformedResponse, err)
	}
	if result.ERROR != "" {
		return "", fmt.Errorf("espell: %s", result.ERROR)
	}

	return strings.TrimSpace(result.CorrectedQuery), nil
}

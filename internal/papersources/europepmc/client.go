package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the Europe PMC REST base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default page size.
	DefaultMaxResults = 10

	medArticleURL = "https://europepmc.org/article/med/"
	pmcArticleURL = "https://europepmc.org/article/pmc/"

	sourceName = "EuropePMC"
)

// Config holds configuration for the Europe PMC client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxResults int
	Enabled    bool
}

func (c *Config) applyDefaults() {
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
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.Source interface for Europe PMC.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Source = (*Client)(nil)

// New creates a new Europe PMC client.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search runs a core search against Europe PMC.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("europepmc: %w", domain.ErrSourceDisabled)
	}

	startTime := time.Now()

	u, err := url.Parse(c.config.BaseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	pageSize := params.MaxResults
	if pageSize <= 0 {
		pageSize = c.config.MaxResults
	}

	q := u.Query()
	q.Set("query", params.Query)
	q.Set("format", "json")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("resultType", "core")
	u.RawQuery = q.Encode()

	body, err := c.httpClient.Get(ctx, sourceName, u.String())
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", papersources.ErrMalformedResponse, err)
	}

	studies := make([]domain.Study, 0, len(resp.ResultList.Result))
	for i := range resp.ResultList.Result {
		studies = append(studies, resultToStudy(&resp.ResultList.Result[i]))
	}

	return &papersources.SearchResult{
		Studies:        studies,
		Source:         domain.SourceTypeEuropePMC,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeEuropePMC
}

// Name returns the human-readable name of this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func resultToStudy(r *Result) domain.Study {
	study := domain.NewStudy(domain.SourceTypeEuropePMC)
	study.Title = r.Title
	study.Abstract = r.AbstractText
	study.PublicationDate = r.FirstPublicationDate
	study.DOI = r.DOI

	for _, a := range r.AuthorList.Author {
		if a.FullName != "" {
			study.Authors = append(study.Authors, a.FullName)
		}
	}

	study.Journal = r.JournalInfo.Journal.Title
	if study.Journal == "" {
		study.Journal = r.JournalTitle
	}

	switch {
	case r.PMID != "":
		study.URL = medArticleURL + r.PMID
	case r.PMCID != "":
		study.URL = pmcArticleURL + r.PMCID
	}

	return study
}

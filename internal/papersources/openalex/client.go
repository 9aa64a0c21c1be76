package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultEmail is sent as mailto when no API key is configured,
	// which places requests in the polite pool.
	DefaultEmail = "openevidence@example.com"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// maxAbstractWords caps inverted index reconstruction.
	maxAbstractWords = 100_000

	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// APIKey is sent as the api_key query parameter when set.
	APIKey string

	// Email is sent as mailto when APIKey is empty.
	// Defaults to DefaultEmail.
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is used when a search does not specify a cap.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Email == "" {
		c.Email = DefaultEmail
	}
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

// Client implements the papersources.Source interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: papersources.DefaultUserAgent + " (mailto:" + cfg.Email + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAlex for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("openalex: %w", domain.ErrSourceDisabled)
	}

	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	body, err := c.httpClient.Get(ctx, sourceName, searchURL)
	if err != nil {
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", papersources.ErrMalformedResponse, err)
	}

	studies := make([]domain.Study, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		studies = append(studies, workToStudy(&searchResp.Results[i]))
	}

	return &papersources.SearchResult{
		Studies:        studies,
		Source:         domain.SourceTypeOpenAlex,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name of this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the works search URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	u, err := url.Parse(c.config.BaseURL + "/works")
	if err != nil {
		return "", err
	}

	perPage := params.MaxResults
	if perPage <= 0 {
		perPage = c.config.MaxResults
	}

	q := u.Query()
	q.Set("search", params.Query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("sort", "relevance_score:desc")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	} else {
		q.Set("mailto", c.config.Email)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// workToStudy converts an OpenAlex work to a domain.Study.
func workToStudy(work *Work) domain.Study {
	study := domain.NewStudy(domain.SourceTypeOpenAlex)
	study.Title = work.Title
	study.Abstract = reconstructAbstract(work.AbstractInvertedIndex)
	study.PublicationDate = work.PublicationDate

	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			study.Authors = append(study.Authors, authorship.Author.DisplayName)
		}
	}

	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		study.Journal = work.PrimaryLocation.Source.DisplayName
	}

	study.DOI = strings.TrimPrefix(work.DOI, doiPrefix)
	study.URL = work.DOI
	if study.URL == "" {
		study.URL = work.ID
	}

	return study
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index,
// which maps each word to the positions it occupies. Words sharing a
// position are ordered lexically so the output is deterministic.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	if totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pos != pairs[j].pos {
			return pairs[i].pos < pairs[j].pos
		}
		return pairs[i].word < pairs[j].word
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return builder.String()
}

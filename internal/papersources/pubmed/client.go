package pubmed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	DefaultRateLimit = 3.0

	// KeyedRateLimit is the rate limit NCBI grants to requests carrying an API key.
	KeyedRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 10

	// articleURLFormat builds the public PubMed page of an article.
	articleURLFormat = "https://pubmed.ncbi.nlm.nih.gov/%s/"

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits. Optional.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit, or KeyedRateLimit when APIKey is set.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is used when a search does not specify a cap.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults applies default values to the config.
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
		if c.APIKey != "" {
			c.RateLimit = KeyedRateLimit
		}
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Source.
var _ papersources.Source = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	}

	return &Client{
		config:     cfg,
		httpClient: papersources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// HTTPClient returns the rate-limited client used for E-utilities calls.
// Other NCBI callers share it so one API key stays within its limit.
func (c *Client) HTTPClient() *papersources.HTTPClient {
	return c.httpClient
}

// Search queries PubMed for articles matching the given parameters.
// It performs a two-step search:
//  1. esearch.fcgi resolves the query to PMIDs
//  2. efetch.fcgi retrieves the article records for those PMIDs
//
// When the first step yields no PMIDs the second call is not made.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("pubmed: %w", domain.ErrSourceDisabled)
	}

	startTime := time.Now()

	ids, err := c.esearch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	if len(ids) == 0 {
		return &papersources.SearchResult{
			Studies:        []domain.Study{},
			Source:         domain.SourceTypePubMed,
			SearchDuration: time.Since(startTime),
		}, nil
	}

	articles, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	studies := make([]domain.Study, 0, len(articles.Articles))
	for _, article := range articles.Articles {
		studies = append(studies, articleToStudy(article))
	}

	return &papersources.SearchResult{
		Studies:        studies,
		Source:         domain.SourceTypePubMed,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, params papersources.SearchParams) ([]string, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", params.Query)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("sort", "relevance")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	body, err := c.httpClient.Get(ctx, sourceName, u.String())
	if err != nil {
		return nil, err
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: esearch: %w", papersources.ErrMalformedResponse, err)
	}
	if result.ERROR != "" {
		return nil, errors.New("esearch: " + result.ERROR)
	}

	return result.IDList.IDs, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	body, err := c.httpClient.Get(ctx, sourceName, u.String())
	if err != nil {
		return nil, err
	}

	var result PubmedArticleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: efetch: %w", papersources.ErrMalformedResponse, err)
	}

	return &result, nil
}

// articleToStudy converts a PubmedArticle to a domain.Study.
func articleToStudy(article PubmedArticle) domain.Study {
	citation := article.MedlineCitation

	study := domain.NewStudy(domain.SourceTypePubMed)
	study.Title = citation.Article.ArticleTitle.String()
	study.Abstract = extractAbstract(citation.Article.Abstract)
	study.Authors = extractAuthors(citation.Article.AuthorList)
	study.Journal = citation.Article.Journal.Title.String()
	study.PublicationDate = formatPubDate(citation.Article.Journal.JournalIssue.PubDate)
	study.DOI = extractDOI(citation.Article)

	if pmid := strings.TrimSpace(citation.PMID.Value); pmid != "" {
		study.URL = fmt.Sprintf(articleURLFormat, pmid)
	}

	return study
}

// extractDOI returns the first ELocationID tagged as a DOI.
func extractDOI(article Article) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" {
			return strings.TrimSpace(eloc.Value)
		}
	}
	return ""
}

// formatPubDate joins the year, month and day parts that are present.
func formatPubDate(date PubDate) string {
	parts := make([]string, 0, 3)
	for _, p := range []Text{date.Year, date.Month, date.Day} {
		if p != "" {
			parts = append(parts, p.String())
		}
	}
	return strings.Join(parts, " ")
}

// extractAbstract concatenates abstract sections, rendering every labelled
// one as "Label: text" even when its text is empty. Empty unlabelled
// sections are skipped.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil {
		return ""
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		switch {
		case at.Label != "":
			parts = append(parts, at.Label+": "+at.Text)
		case at.Text != "":
			parts = append(parts, at.Text)
		}
	}

	return strings.Join(parts, " ")
}

// extractAuthors builds "ForeName LastName" names, skipping authors without a last name.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil {
		return []string{}
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.LastName == "" {
			continue
		}
		authors = append(authors, strings.TrimSpace(a.ForeName.String()+" "+a.LastName.String()))
	}
	return authors
}

// Package papersources provides interfaces and types for medical evidence source clients.
//
// Each registry (PubMed, ClinicalTrials.gov, Europe PMC, OpenAlex) implements the
// Source interface, translating its native wire format into domain.Study records.
// The Registry fans a single query out to every registered source concurrently and
// returns their contributions in a fixed priority order.
//
// Example usage:
//
//	registry := papersources.NewRegistry(logger, metrics)
//	registry.Register(pubmed.New(pubmedCfg))
//	registry.Register(clinicaltrials.New(ctCfg))
//	results := registry.SearchAll(ctx, papersources.SearchParams{
//		Query:      "aspirin stroke prevention",
//		MaxResults: 10,
//	})
//	studies := papersources.Flatten(results)
package papersources

import (
	"context"
	"errors"
	"time"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// ErrMalformedResponse indicates that a source returned a payload that could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// SearchParams defines the parameters for a single source search.
type SearchParams struct {
	// Query is the search term sent to the source (required).
	Query string

	// MaxResults caps the number of records requested from the source.
	// A value of 0 uses the source's default limit.
	MaxResults int
}

// SearchResult contains the records produced by one source.
type SearchResult struct {
	// Studies contains the normalised records in upstream order.
	// May be empty if nothing matched.
	Studies []domain.Study

	// Source identifies which source produced these records.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// Source defines the interface that all evidence source clients must implement.
type Source interface {
	// Search queries the source and returns its records normalised to domain.Study.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting through the shared HTTPClient
	//   - Return an error for transport failures, non-2xx statuses and malformed payloads
	//   - Never retry a failed request
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs and metrics.
	Name() string

	// IsEnabled returns whether this source should be queried.
	IsEnabled() bool
}

// Package evidence runs the search pipeline: correct the query, search every
// source concurrently, merge and deduplicate the records, then summarize them.
package evidence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/evidence-search-service/internal/dedup"
	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/observability"
	"github.com/helixir/evidence-search-service/internal/papersources"
	"github.com/helixir/evidence-search-service/internal/spellcheck"
)

// Corrector proposes the query actually sent to the sources.
type Corrector interface {
	Correct(ctx context.Context, raw string) spellcheck.Correction
}

// Aggregator searches every source and returns one result per source in
// priority order.
type Aggregator interface {
	SearchAll(ctx context.Context, params papersources.SearchParams) []papersources.SourceResult
}

// Summarizer produces a short summary of studies, or "".
type Summarizer interface {
	Summarize(ctx context.Context, query string, studies []domain.Study) string
}

// MetricsRecorder receives pipeline-level metrics.
type MetricsRecorder interface {
	RecordSearchStarted()
	RecordSearchCompleted(studies, duplicates int, durationSeconds float64)
	RecordSearchFailed(reason string, durationSeconds float64)
}

// Service runs the search pipeline.
type Service struct {
	corrector  Corrector
	aggregator Aggregator
	summarizer Summarizer
	metrics    MetricsRecorder
	logger     zerolog.Logger
}

// NewService creates a Service. metrics may be nil.
func NewService(corrector Corrector, aggregator Aggregator, summarizer Summarizer, metrics MetricsRecorder, logger zerolog.Logger) *Service {
	return &Service{
		corrector:  corrector,
		aggregator: aggregator,
		summarizer: summarizer,
		metrics:    metrics,
		logger:     logger.With().Str("component", "evidence-search").Logger(),
	}
}

// Search runs the pipeline for q.
//
// The only errors returned are a *domain.ValidationError for invalid input,
// which is reported before any network activity, and ctx.Err() when the
// context ends during the run. Source, correction and summary failures
// degrade the result instead of failing it.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()
	s.recordStarted()

	if err := q.Validate(); err != nil {
		s.recordFailed("invalid_input", start)
		return nil, err
	}

	logger := observability.WithRequestContext(ctx, s.logger).With().Str("query", q.Query).Int("max_results", q.MaxResultsPerSource).Logger()
	logger.Info().Msg("search started")

	correction := s.corrector.Correct(ctx, q.Query)
	if correction.Corrected() {
		logger.Info().Str("corrected_query", correction.SearchQuery).Msg("using corrected query")
	}

	results := s.aggregator.SearchAll(ctx, papersources.SearchParams{
		Query:      correction.SearchQuery,
		MaxResults: q.MaxResultsPerSource,
	})
	if err := ctx.Err(); err != nil {
		s.recordFailed(cancelReason(err), start)
		return nil, err
	}

	all := papersources.Flatten(results)
	unique := dedup.ByTitle(all)

	logger.Info().
		Int("total", len(all)).
		Int("unique", len(unique)).
		Int("failed_sources", countFailed(results)).
		Msg("search complete")

	summary := s.summarizer.Summarize(ctx, correction.SearchQuery, unique)
	if err := ctx.Err(); err != nil {
		s.recordFailed(cancelReason(err), start)
		return nil, err
	}

	result := domain.NewSearchResult(q.Query, correction.Display, unique, summary)

	if s.metrics != nil {
		s.metrics.RecordSearchCompleted(len(unique), len(all)-len(unique), time.Since(start).Seconds())
	}
	return result, nil
}

func (s *Service) recordStarted() {
	if s.metrics != nil {
		s.metrics.RecordSearchStarted()
	}
}

func (s *Service) recordFailed(reason string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSearchFailed(reason, time.Since(start).Seconds())
	}
}

func cancelReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "canceled"
}

func countFailed(results []papersources.SourceResult) int {
	n := 0
	for _, r := range results {
		if r.Error != nil {
			n++
		}
	}
	return n
}

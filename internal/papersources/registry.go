package papersources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/observability"
)

// SourceResult holds the outcome of a search against one source.
type SourceResult struct {
	// Source identifies which source produced the result.
	Source domain.SourceType

	// Result contains the search results if the search succeeded.
	// Will be nil if Error is non-nil.
	Result *SearchResult

	// Error contains the error if the search failed.
	// Will be nil if Result is non-nil.
	Error error
}

// Studies returns the records of a successful result, or nil.
func (r SourceResult) Studies() []domain.Study {
	if r.Error != nil || r.Result == nil {
		return nil
	}
	return r.Result.Studies
}

// MetricsRecorder receives per-source outcome metrics.
type MetricsRecorder interface {
	RecordSourceSearch(source string, records int, durationSeconds float64)
	RecordSourceSearchFailed(source, errorType string, durationSeconds float64)
}

// Executor runs fn under a named guard such as a circuit breaker.
type Executor interface {
	Execute(name string, fn func() error) error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics records per-source outcomes on m.
func WithMetrics(m MetricsRecorder) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithExecutor runs every source search through e.
func WithExecutor(e Executor) RegistryOption {
	return func(r *Registry) {
		r.executor = e
	}
}

// Registry manages sources and coordinates concurrent searches.
// Sources are kept in registration order, which is also the order in which
// their records are merged.
type Registry struct {
	mu       sync.RWMutex
	sources  []Source
	logger   zerolog.Logger
	metrics  MetricsRecorder
	executor Executor
}

// NewRegistry creates a new source registry with no sources.
func NewRegistry(logger zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: logger.With().Str("component", "source-registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a source to the registry.
// If a source with the same type already exists, it is replaced in place and
// keeps its priority; otherwise the source is appended with the lowest priority.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.sources {
		if existing.SourceType() == source.SourceType() {
			r.sources[i] = source
			return
		}
	}
	r.sources = append(r.sources, source)
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType domain.SourceType) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sources {
		if s.SourceType() == sourceType {
			return s
		}
	}
	return nil
}

// AllSources returns a snapshot of all registered sources in priority order.
func (r *Registry) AllSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, len(r.sources))
	copy(sources, r.sources)
	return sources
}

// EnabledSources returns a snapshot of the enabled sources in priority order.
func (r *Registry) EnabledSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		if s.IsEnabled() {
			sources = append(sources, s)
		}
	}
	return sources
}

// SearchAll searches every enabled source concurrently and returns one
// SourceResult per source in priority order, regardless of completion order.
//
// A failing source is logged and reported through its SourceResult.Error; it
// never cancels or otherwise affects the other searches. Callers that care
// about cancellation must check ctx.Err() after SearchAll returns and discard
// the results if it is non-nil.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	sources := r.EnabledSources()
	if len(sources) == 0 {
		return nil
	}

	results := make([]SourceResult, len(sources))

	// A plain Group: tasks never return errors, so no sibling is cancelled.
	var g errgroup.Group
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			results[i] = r.searchOne(ctx, source, params)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// searchOne runs a single source search, converting errors and panics into
// a SourceResult and recording the outcome.
func (r *Registry) searchOne(ctx context.Context, source Source, params SearchParams) (out SourceResult) {
	start := time.Now()
	out.Source = source.SourceType()

	defer func() {
		if p := recover(); p != nil {
			out.Result = nil
			out.Error = fmt.Errorf("%s: panic during search: %v", source.Name(), p)
			r.recordFailure(ctx, source, params, out.Error, time.Since(start))
		}
	}()

	var result *SearchResult
	search := func() error {
		var err error
		result, err = source.Search(ctx, params)
		return err
	}

	var err error
	if r.executor != nil {
		err = r.executor.Execute(source.Name(), search)
	} else {
		err = search()
	}

	elapsed := time.Since(start)
	if err != nil {
		out.Error = err
		r.recordFailure(ctx, source, params, err, elapsed)
		return out
	}
	if result == nil {
		result = &SearchResult{Source: source.SourceType()}
	}

	out.Result = result
	if r.metrics != nil {
		r.metrics.RecordSourceSearch(source.Name(), len(result.Studies), elapsed.Seconds())
	}
	logger := observability.WithSearchContext(r.logger, params.Query, source.Name())
	logger.Debug().
		Int("records", len(result.Studies)).
		Dur("duration", elapsed).
		Msg("source search completed")
	return out
}

func (r *Registry) recordFailure(ctx context.Context, source Source, params SearchParams, err error, elapsed time.Duration) {
	errType := ClassifyError(err)
	if r.metrics != nil {
		r.metrics.RecordSourceSearchFailed(source.Name(), errType, elapsed.Seconds())
	}

	logger := observability.WithSearchContext(r.logger, params.Query, source.Name())
	event := logger.Error()
	if ctx.Err() != nil {
		event = logger.Warn()
	}
	event.Err(err).
		Str("error_type", errType).
		Dur("duration", elapsed).
		Msg("source search failed")
}

// Flatten concatenates the records of every result in slice order.
// Failed results contribute nothing.
func Flatten(results []SourceResult) []domain.Study {
	total := 0
	for _, r := range results {
		total += len(r.Studies())
	}

	studies := make([]domain.Study, 0, total)
	for _, r := range results {
		studies = append(studies, r.Studies()...)
	}
	return studies
}

// ClassifyError maps a source error to a short label for metrics and logs.
func ClassifyError(err error) string {
	var apiErr *domain.ExternalAPIError
	var netErr net.Error

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.As(err, &apiErr):
		return "http_status"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "other"
	}
}

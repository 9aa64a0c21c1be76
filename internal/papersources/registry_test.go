package papersources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// mockSource is a mock implementation of Source for testing.
type mockSource struct {
	sourceType domain.SourceType
	enabled    bool

	// searchFunc allows customizing search behavior in tests
	searchFunc func(ctx context.Context, params SearchParams) (*SearchResult, error)

	// Track calls for verification
	searchCalls atomic.Int32
}

func newMockSource(sourceType domain.SourceType, enabled bool) *mockSource {
	return &mockSource{
		sourceType: sourceType,
		enabled:    enabled,
	}
}

func (m *mockSource) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	m.searchCalls.Add(1)
	if m.searchFunc != nil {
		return m.searchFunc(ctx, params)
	}
	return &SearchResult{Studies: []domain.Study{}, Source: m.sourceType}, nil
}

func (m *mockSource) SourceType() domain.SourceType { return m.sourceType }
func (m *mockSource) Name() string                  { return string(m.sourceType) }
func (m *mockSource) IsEnabled() bool               { return m.enabled }

func studiesNamed(source domain.SourceType, titles ...string) []domain.Study {
	out := make([]domain.Study, 0, len(titles))
	for _, title := range titles {
		s := domain.NewStudy(source)
		s.Title = title
		out = append(out, s)
	}
	return out
}

func returning(source domain.SourceType, delay time.Duration, titles ...string) func(context.Context, SearchParams) (*SearchResult, error) {
	return func(ctx context.Context, _ SearchParams) (*SearchResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &SearchResult{Studies: studiesNamed(source, titles...), Source: source}, nil
	}
}

func titlesOf(studies []domain.Study) []string {
	out := make([]string, len(studies))
	for i, s := range studies {
		out[i] = s.Title
	}
	return out
}

type recordedMetrics struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]string
}

func newRecordedMetrics() *recordedMetrics {
	return &recordedMetrics{successes: map[string]int{}, failures: map[string]string{}}
}

func (m *recordedMetrics) RecordSourceSearch(source string, records int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes[source] = records
}

func (m *recordedMetrics) RecordSourceSearchFailed(source, errorType string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[source] = errorType
}

type countingExecutor struct {
	calls atomic.Int32
	err   error
}

func (e *countingExecutor) Execute(_ string, fn func() error) error {
	e.calls.Add(1)
	if e.err != nil {
		return e.err
	}
	return fn()
}

func TestRegistry_Register(t *testing.T) {
	t.Run("keeps registration order", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		for _, st := range domain.SourceTypes() {
			registry.Register(newMockSource(st, true))
		}

		sources := registry.AllSources()
		require.Len(t, sources, 4)
		for i, st := range domain.SourceTypes() {
			assert.Equal(t, st, sources[i].SourceType())
		}
	})

	t.Run("replaces same type in place", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		registry.Register(newMockSource(domain.SourceTypePubMed, true))
		registry.Register(newMockSource(domain.SourceTypeOpenAlex, true))

		replacement := newMockSource(domain.SourceTypePubMed, false)
		registry.Register(replacement)

		sources := registry.AllSources()
		require.Len(t, sources, 2)
		assert.Same(t, replacement, sources[0])
		assert.Same(t, replacement, registry.Get(domain.SourceTypePubMed))
	})

	t.Run("get unknown returns nil", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		assert.Nil(t, registry.Get(domain.SourceTypeEuropePMC))
	})

	t.Run("enabled sources filters", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		registry.Register(newMockSource(domain.SourceTypePubMed, true))
		registry.Register(newMockSource(domain.SourceTypeClinicalTrials, false))
		registry.Register(newMockSource(domain.SourceTypeEuropePMC, true))

		enabled := registry.EnabledSources()
		require.Len(t, enabled, 2)
		assert.Equal(t, domain.SourceTypePubMed, enabled[0].SourceType())
		assert.Equal(t, domain.SourceTypeEuropePMC, enabled[1].SourceType())
	})
}

func TestRegistry_SearchAll(t *testing.T) {
	t.Run("merge order ignores completion order", func(t *testing.T) {
		pubmed := newMockSource(domain.SourceTypePubMed, true)
		pubmed.searchFunc = returning(domain.SourceTypePubMed, 60*time.Millisecond, "A")
		trials := newMockSource(domain.SourceTypeClinicalTrials, true)
		trials.searchFunc = returning(domain.SourceTypeClinicalTrials, 0)
		epmc := newMockSource(domain.SourceTypeEuropePMC, true)
		epmc.searchFunc = returning(domain.SourceTypeEuropePMC, 30*time.Millisecond, "B", "C")
		openalex := newMockSource(domain.SourceTypeOpenAlex, true)
		openalex.searchFunc = returning(domain.SourceTypeOpenAlex, 0, "D")

		registry := NewRegistry(zerolog.Nop())
		registry.Register(pubmed)
		registry.Register(trials)
		registry.Register(epmc)
		registry.Register(openalex)

		results := registry.SearchAll(context.Background(), SearchParams{Query: "aspirin", MaxResults: 5})

		require.Len(t, results, 4)
		for i, st := range domain.SourceTypes() {
			assert.Equal(t, st, results[i].Source)
			assert.NoError(t, results[i].Error)
		}
		assert.Equal(t, []string{"A", "B", "C", "D"}, titlesOf(Flatten(results)))
	})

	t.Run("runs sources concurrently", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		for _, st := range domain.SourceTypes() {
			s := newMockSource(st, true)
			s.searchFunc = returning(st, 100*time.Millisecond, string(st))
			registry.Register(s)
		}

		start := time.Now()
		results := registry.SearchAll(context.Background(), SearchParams{Query: "q"})
		elapsed := time.Since(start)

		assert.Len(t, Flatten(results), 4)
		assert.Less(t, elapsed, 350*time.Millisecond)
	})

	t.Run("failure is isolated", func(t *testing.T) {
		metrics := newRecordedMetrics()
		registry := NewRegistry(zerolog.Nop(), WithMetrics(metrics))

		pubmed := newMockSource(domain.SourceTypePubMed, true)
		pubmed.searchFunc = returning(domain.SourceTypePubMed, 0, "A")
		trials := newMockSource(domain.SourceTypeClinicalTrials, true)
		trials.searchFunc = func(context.Context, SearchParams) (*SearchResult, error) {
			return nil, domain.NewExternalAPIError("ClinicalTrials", 403, "blocked", nil)
		}
		epmc := newMockSource(domain.SourceTypeEuropePMC, true)
		epmc.searchFunc = returning(domain.SourceTypeEuropePMC, 20*time.Millisecond, "B")

		registry.Register(pubmed)
		registry.Register(trials)
		registry.Register(epmc)

		results := registry.SearchAll(context.Background(), SearchParams{Query: "q"})

		require.Len(t, results, 3)
		assert.Error(t, results[1].Error)
		assert.Nil(t, results[1].Studies())
		assert.Equal(t, []string{"A", "B"}, titlesOf(Flatten(results)))
		assert.Equal(t, "http_status", metrics.failures["ClinicalTrials"])
		assert.Equal(t, 1, metrics.successes["PubMed"])
		assert.Equal(t, 1, metrics.successes["EuropePMC"])
	})

	t.Run("all sources failing yields no studies", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		for _, st := range domain.SourceTypes() {
			s := newMockSource(st, true)
			s.searchFunc = func(context.Context, SearchParams) (*SearchResult, error) {
				return nil, errors.New("down")
			}
			registry.Register(s)
		}

		results := registry.SearchAll(context.Background(), SearchParams{Query: "q"})
		require.Len(t, results, 4)
		assert.Empty(t, Flatten(results))
	})

	t.Run("panic is contained", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		bad := newMockSource(domain.SourceTypePubMed, true)
		bad.searchFunc = func(context.Context, SearchParams) (*SearchResult, error) {
			panic("nil map")
		}
		good := newMockSource(domain.SourceTypeOpenAlex, true)
		good.searchFunc = returning(domain.SourceTypeOpenAlex, 0, "D")
		registry.Register(bad)
		registry.Register(good)

		results := registry.SearchAll(context.Background(), SearchParams{Query: "q"})
		require.Len(t, results, 2)
		require.Error(t, results[0].Error)
		assert.Contains(t, results[0].Error.Error(), "panic")
		assert.Equal(t, []string{"D"}, titlesOf(Flatten(results)))
	})

	t.Run("disabled sources are skipped", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		disabled := newMockSource(domain.SourceTypePubMed, false)
		enabled := newMockSource(domain.SourceTypeOpenAlex, true)
		registry.Register(disabled)
		registry.Register(enabled)

		results := registry.SearchAll(context.Background(), SearchParams{Query: "q"})
		require.Len(t, results, 1)
		assert.Equal(t, int32(0), disabled.searchCalls.Load())
		assert.Equal(t, int32(1), enabled.searchCalls.Load())
	})

	t.Run("no sources", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		assert.Nil(t, registry.SearchAll(context.Background(), SearchParams{Query: "q"}))
	})

	t.Run("params forwarded", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		var got SearchParams
		s := newMockSource(domain.SourceTypePubMed, true)
		s.searchFunc = func(_ context.Context, p SearchParams) (*SearchResult, error) {
			got = p
			return nil, nil
		}
		registry.Register(s)

		results := registry.SearchAll(context.Background(), SearchParams{Query: "aspirin", MaxResults: 7})
		require.Len(t, results, 1)
		assert.NoError(t, results[0].Error)
		assert.Equal(t, SearchParams{Query: "aspirin", MaxResults: 7}, got)
	})

	t.Run("cancellation abandons in-flight searches", func(t *testing.T) {
		registry := NewRegistry(zerolog.Nop())
		for _, st := range domain.SourceTypes() {
			s := newMockSource(st, true)
			s.searchFunc = returning(st, 5*time.Second, "late")
			registry.Register(s)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		results := registry.SearchAll(ctx, SearchParams{Query: "q"})
		assert.Less(t, time.Since(start), time.Second)
		require.Error(t, ctx.Err())
		for _, r := range results {
			assert.ErrorIs(t, r.Error, context.Canceled)
		}
	})

	t.Run("executor wraps every search", func(t *testing.T) {
		exec := &countingExecutor{}
		registry := NewRegistry(zerolog.Nop(), WithExecutor(exec))
		for _, st := range domain.SourceTypes() {
			registry.Register(newMockSource(st, true))
		}

		registry.SearchAll(context.Background(), SearchParams{Query: "q"})
		assert.Equal(t, int32(4), exec.calls.Load())
	})

	t.Run("executor rejection counts as failure", func(t *testing.T) {
		exec := &countingExecutor{err: fmt.Errorf("breaker: %w", domain.ErrServiceUnavailable)}
		metrics := newRecordedMetrics()
		registry := NewRegistry(zerolog.Nop(), WithExecutor(exec), WithMetrics(metrics))
		s := newMockSource(domain.SourceTypePubMed, true)
		registry.Register(s)

		results := registry.SearchAll(context.Background(), SearchParams{Query: "q"})
		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0].Error, domain.ErrServiceUnavailable)
		assert.Equal(t, int32(0), s.searchCalls.Load())
		assert.Equal(t, "unavailable", metrics.failures["PubMed"])
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "canceled", err: fmt.Errorf("wrap: %w", context.Canceled), want: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "rate limited", err: domain.NewExternalAPIError("PubMed", 429, "", domain.NewRateLimitError("PubMed", time.Second)), want: "rate_limited"},
		{name: "status", err: domain.NewExternalAPIError("PubMed", 500, "", nil), want: "http_status"},
		{name: "malformed", err: fmt.Errorf("decode: %w", ErrMalformedResponse), want: "malformed"},
		{name: "unavailable", err: domain.ErrServiceUnavailable, want: "unavailable"},
		{name: "other", err: errors.New("x"), want: "other"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestRegistry_SearchAll_LogsSearchContext(t *testing.T) {
	decodeLine := func(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
		t.Helper()
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		return entry
	}

	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		source := newMockSource(domain.SourceTypePubMed, true)
		source.searchFunc = returning(domain.SourceTypePubMed, 0, "A", "B")

		registry := NewRegistry(zerolog.New(&buf).Level(zerolog.DebugLevel))
		registry.Register(source)
		registry.SearchAll(context.Background(), SearchParams{Query: "aspirin", MaxResults: 5})

		entry := decodeLine(t, &buf)
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "source search completed", entry["message"])
		assert.Equal(t, "aspirin", entry["query"])
		assert.Equal(t, "PubMed", entry["source"])
		assert.EqualValues(t, 2, entry["records"])
	})

	t.Run("failure", func(t *testing.T) {
		var buf bytes.Buffer
		source := newMockSource(domain.SourceTypeOpenAlex, true)
		source.searchFunc = func(context.Context, SearchParams) (*SearchResult, error) {
			return nil, errors.New("boom")
		}

		registry := NewRegistry(zerolog.New(&buf).Level(zerolog.DebugLevel))
		registry.Register(source)
		registry.SearchAll(context.Background(), SearchParams{Query: "statins", MaxResults: 5})

		entry := decodeLine(t, &buf)
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "source search failed", entry["message"])
		assert.Equal(t, "statins", entry["query"])
		assert.Equal(t, "OpenAlex", entry["source"])
	})
}

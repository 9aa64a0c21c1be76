package httpserver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/evidence-search-service/internal/observability"
)

func TestCorrelationIDMiddleware_UsesExistingHeader(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := observability.CorrelationIDFromContext(r.Context())
		if cid != "test-correlation-123" {
			t.Errorf("expected correlation ID test-correlation-123, got %s", cid)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Correlation-ID", "test-correlation-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Correlation-ID") != "test-correlation-123" {
		t.Errorf("expected X-Correlation-ID header to be set")
	}
}

func TestCorrelationIDMiddleware_GeneratesIfMissing(t *testing.T) {
	var seen string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen == "" {
		t.Fatal("expected non-empty correlation ID")
	}
	if len(seen) != 36 {
		t.Errorf("expected a UUID correlation ID, got %q", seen)
	}
	if rr.Header().Get("X-Correlation-ID") != seen {
		t.Error("expected X-Correlation-ID header to match context value")
	}
}

func TestRouter_PropagatesRequestID(t *testing.T) {
	var reqID string
	srv := newTestServer(&mockSearcher{})
	srv.router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		reqID = observability.RequestIDFromContext(r.Context())
	})

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	if reqID == "" {
		t.Error("expected request ID in context")
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	srv := newTestServer(&mockSearcher{})

	for _, origin := range []string{"https://evidence.example.org", "http://localhost:3000"} {
		origin := origin
		t.Run(origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/search?q=aspirin", nil)
			req.Header.Set("Origin", origin)
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Errorf("expected allow origin %s, got %q", origin, got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
				t.Errorf("expected credentials allowed, got %q", got)
			}
		})
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv := newTestServer(&mockSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=aspirin", nil)
	req.Header.Set("Origin", "https://attacker.example.com")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow origin header, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	searcher := &mockSearcher{}
	srv := newTestServer(searcher)

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Custom")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allow methods header")
	}
	if len(searcher.calls) != 0 {
		t.Error("preflight must not run a search")
	}
}

func TestCORS_DefaultsToLocalFrontend(t *testing.T) {
	srv := NewServer(Config{}, &mockSearcher{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected unknown origin rejected, got %q", got)
	}
}

func TestRequestTimeoutMiddleware(t *testing.T) {
	t.Run("sets deadline", func(t *testing.T) {
		var deadline time.Time
		var ok bool
		handler := requestTimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deadline, ok = r.Context().Deadline()
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if !ok {
			t.Fatal("expected a deadline")
		}
		if time.Until(deadline) > time.Minute {
			t.Errorf("deadline too far in the future: %v", deadline)
		}
	})
}

// recordingHTTPMetrics captures RecordHTTPRequest calls.
type recordingHTTPMetrics struct {
	mu      sync.Mutex
	records []string
}

func (m *recordingHTTPMetrics) RecordHTTPRequest(method, route string, status int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, method+" "+route+" "+http.StatusText(status))
}

func TestAccessLogMiddleware_RecordsRoutePattern(t *testing.T) {
	metrics := &recordingHTTPMetrics{}
	srv := NewServer(Config{}, validatingSearcher(), zerolog.Nop(), WithMetrics(metrics))

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search?q=aspirin", nil))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search", nil))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	want := []string{
		"GET /api/search OK",
		"GET /api/search Bad Request",
		"GET /health OK",
	}
	if len(metrics.records) != len(want) {
		t.Fatalf("expected %d records, got %v", len(want), metrics.records)
	}
	for i := range want {
		if metrics.records[i] != want[i] {
			t.Errorf("record %d: expected %q, got %q", i, want[i], metrics.records[i])
		}
	}
}

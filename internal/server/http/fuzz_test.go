package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// The handler must answer every input with a client error or a result and
// never panic.

func FuzzSearchPostBody(f *testing.F) {
	f.Add([]byte(`{"query":"aspirin"}`))
	f.Add([]byte(`{"query":"aspirin","max_results":50}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"query":""}`))
	f.Add([]byte(`{"query":null}`))
	f.Add([]byte(`{"query":123}`))
	f.Add([]byte(`{"query":"a","max_results":-1}`))
	f.Add([]byte(`{"query":"a","max_results":1e40}`))
	f.Add([]byte(`{"query":"a","extra":"b"}`))
	f.Add([]byte(`not json at all`))
	f.Add([]byte{0x00})
	f.Add([]byte{0xff, 0xfe})
	f.Add([]byte(`{"query":"<script>alert('xss')</script>"}`))
	f.Add([]byte(`{"query":"` + strings.Repeat("a", 600) + `"}`))

	srv := newTestServer(validatingSearcher())

	f.Fuzz(func(t *testing.T, body []byte) {
		req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rr, req)

		switch rr.Code {
		case http.StatusOK, http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		default:
			t.Fatalf("unexpected status %d for body %q", rr.Code, body)
		}
	})
}

func FuzzSearchGetQuery(f *testing.F) {
	f.Add("aspirin", "10")
	f.Add("", "")
	f.Add("'; DROP TABLE studies; --", "5")
	f.Add("query\x00with\x00nulls", "1")
	f.Add("‮right-to-left‬", "50")
	f.Add("\U0001F4A9", "51")
	f.Add("covid", "abc")
	f.Add("covid", "-3")

	srv := newTestServer(validatingSearcher())

	f.Fuzz(func(t *testing.T, q, maxResults string) {
		values := url.Values{}
		values.Set("q", q)
		if maxResults != "" {
			values.Set("max_results", maxResults)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/search?"+values.Encode(), nil)
		rr := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK && rr.Code != http.StatusBadRequest {
			t.Fatalf("unexpected status %d for q=%q max_results=%q", rr.Code, q, maxResults)
		}
	})
}

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/observability"
)

// maxRequestBodySize is the 1 MB limit for request bodies.
const maxRequestBodySize = 1 << 20

// searchGet handles GET /api/search?q=&max_results=.
func (s *Server) searchGet(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := domain.SearchQuery{
		Query:               params.Get("q"),
		MaxResultsPerSource: domain.DefaultResultsPerSource,
	}
	if raw := params.Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_results must be an integer")
			return
		}
		q.MaxResultsPerSource = n
	}

	s.search(w, r, q)
}

// searchPost handles POST /api/search with a JSON body.
func (s *Server) searchPost(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	s.search(w, r, req.toQuery())
}

// search runs the pipeline and writes its result. GET and POST share it, so
// identical inputs produce identical responses.
func (s *Server) search(w http.ResponseWriter, r *http.Request, q domain.SearchQuery) {
	ctx := r.Context()
	logger := observability.WithRequestContext(ctx, s.logger)

	logger.Info().
		Str("query", q.Query).
		Int("max_results", q.MaxResultsPerSource).
		Msg("search request")

	result, err := s.searcher.Search(ctx, q)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) {
			logger.Warn().Err(err).Str("query", q.Query).Msg("search failed")
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

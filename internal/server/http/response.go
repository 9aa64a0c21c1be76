package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// statusClientClosedRequest is reported when the caller went away before the search finished.
const statusClientClosedRequest = 499

// searchRequest is the JSON request body of POST /api/search.
type searchRequest struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"max_results,omitempty"`
}

// toQuery applies the default per-source cap when max_results is omitted.
func (r searchRequest) toQuery() domain.SearchQuery {
	q := domain.SearchQuery{
		Query:               r.Query,
		MaxResultsPerSource: domain.DefaultResultsPerSource,
	}
	if r.MaxResults != nil {
		q.MaxResultsPerSource = *r.MaxResults
	}
	return q
}

// writeDomainError maps a search error to a status code and a message that
// never includes upstream details.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "search timed out")
	case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrCancelled):
		writeError(w, statusClientClosedRequest, "search cancelled")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

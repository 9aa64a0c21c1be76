package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// ErrEmptyResponse is returned when the provider answers without choices.
var ErrEmptyResponse = errors.New("empty completion response")

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "openai").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error is a transient error that may succeed
// later. This includes rate limiting (429), server errors (5xx), and network
// errors (StatusCode 0 indicates no HTTP response was received).
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// fromOpenAIError converts go-openai error types into an *APIError.
// Errors of any other type are returned unchanged.
func fromOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &APIError{
			Provider:   providerOpenAI,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Type:       apiErr.Type,
			Code:       code,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{
			Provider:   providerOpenAI,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
		}
	}

	return err
}

// ErrorType returns a short metrics label for a summarization failure.
func ErrorType(err error) string {
	var apiErr *APIError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case errors.As(err, &apiErr) && apiErr.IsTransient():
		return "server_error"
	case errors.As(err, &apiErr):
		return "client_error"
	default:
		return "other"
	}
}

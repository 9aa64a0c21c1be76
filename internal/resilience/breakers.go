// Package resilience guards calls to external dependencies with circuit
// breakers so a dependency that keeps failing is skipped for a cooldown
// period instead of being called on every request.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// Config holds the configuration for one circuit breaker.
type Config struct {
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which counts are cleared.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker, e.g. 0.6.
	FailureThreshold float64

	// MinRequests is the number of requests needed before the ratio is evaluated.
	MinRequests uint32
}

// DefaultConfig returns the configuration used when none is configured.
func DefaultConfig() Config {
	return Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// StateRecorder receives breaker state transitions.
type StateRecorder interface {
	RecordBreakerStateChange(name, from, to string)
}

// BreakerRegistry provides named circuit breakers for external dependencies.
// It is safe for concurrent use and lazily creates breakers on first access.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	config   Config
	logger   zerolog.Logger
	metrics  StateRecorder
}

// NewBreakerRegistry creates a BreakerRegistry whose breakers all use cfg,
// or DefaultConfig when cfg is the zero value. metrics may be nil.
func NewBreakerRegistry(cfg Config, logger zerolog.Logger, metrics StateRecorder) *BreakerRegistry {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   cfg,
		logger:   logger.With().Str("component", "circuit-breaker").Logger(),
		metrics:  metrics,
	}
}

// Execute runs fn through the breaker for name. When the breaker rejects the
// call, the returned error wraps domain.ErrServiceUnavailable.
func (r *BreakerRegistry) Execute(name string, fn func() error) error {
	_, err := r.get(name).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", name, domain.ErrServiceUnavailable, err)
	}
	return err
}

// State returns the current state of the named breaker, or
// gobreaker.StateClosed if the breaker has not been created yet.
func (r *BreakerRegistry) State(name string) gobreaker.State {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (r *BreakerRegistry) get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(r.settings(name, r.config))
	r.breakers[name] = cb
	return cb
}

func (r *BreakerRegistry) settings(name string, cfg Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		// A caller giving up is not a dependency failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().
				Str("circuit", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if r.metrics != nil {
				r.metrics.RecordBreakerStateChange(name, from.String(), to.String())
			}
		},
	}
}

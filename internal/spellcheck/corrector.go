package spellcheck

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Correction is the outcome of correcting a query.
type Correction struct {
	// SearchQuery is the text sent to the sources.
	SearchQuery string

	// Display is the corrected text to show the caller, or empty when the
	// query was not changed.
	Display string
}

// Corrected reports whether a correction was applied.
func (c Correction) Corrected() bool {
	return c.Display != ""
}

// MetricsRecorder receives correction outcomes.
type MetricsRecorder interface {
	RecordCorrection(outcome string)
}

// Correction outcomes reported to MetricsRecorder.
const (
	OutcomeCorrected = "corrected"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Corrector turns a raw query into the query used for searching.
// Failures never surface: the raw query is used instead.
type Corrector struct {
	suggester Suggester
	logger    zerolog.Logger
	metrics   MetricsRecorder
}

// NewCorrector creates a Corrector. A nil suggester disables correction.
func NewCorrector(suggester Suggester, logger zerolog.Logger, metrics MetricsRecorder) *Corrector {
	return &Corrector{
		suggester: suggester,
		logger:    logger.With().Str("component", "spellcheck").Logger(),
		metrics:   metrics,
	}
}

// Correct asks the suggester for a spelling of raw. A suggestion that differs
// from raw other than by letter case replaces it.
func (c *Corrector) Correct(ctx context.Context, raw string) Correction {
	unchanged := Correction{SearchQuery: raw}
	if c.suggester == nil {
		return unchanged
	}

	suggestion, err := c.suggester.Suggest(ctx, raw)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", raw).Msg("spell correction failed")
		c.record(OutcomeFailed)
		return unchanged
	}

	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" || strings.ToLower(suggestion) == strings.ToLower(raw) {
		c.record(OutcomeUnchanged)
		return unchanged
	}

	c.logger.Info().Str("query", raw).Str("corrected", suggestion).Msg("spell correction applied")
	c.record(OutcomeCorrected)
	return Correction{SearchQuery: suggestion, Display: suggestion}
}

func (c *Corrector) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordCorrection(outcome)
	}
}

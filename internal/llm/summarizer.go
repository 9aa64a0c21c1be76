// Package llm produces short evidence summaries of search results with an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/helixir/evidence-search-service/internal/domain"
)

const (
	providerOpenAI = "openai"

	// DefaultModel is the chat model used for summaries.
	DefaultModel = openai.GPT4oMini

	// DefaultMaxTokens bounds the completion length.
	DefaultMaxTokens = 300

	// DefaultTemperature keeps summaries close to the source material.
	DefaultTemperature = 0.3

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxStudies is the number of studies included in the prompt.
	DefaultMaxStudies = 15

	// DefaultSnippetLength is the number of abstract characters per study.
	DefaultSnippetLength = 500

	noAbstract = "No abstract available."

	// BreakerName identifies the completion API to an Executor.
	BreakerName = "openai"
)

// systemPrompt instructs the model how to summarize.
const systemPrompt = "You are a medical evidence summarizer. Given a list of study titles and abstracts " +
	"from a search query, provide a strictly 2-3 sentence evidence-based summary. " +
	"Focus on the consensus findings, note any conflicting evidence, and mention the " +
	"strength of the evidence (e.g., number of studies, study types). " +
	"Do not provide medical advice. Be objective and concise."

// Summary outcomes reported to MetricsRecorder.
const (
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// ChatCompleter is the subset of *openai.Client used by Summarizer.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// MetricsRecorder receives summary outcomes.
type MetricsRecorder interface {
	RecordSummary(outcome, errorType string, durationSeconds float64)
}

// Executor runs fn under a named guard such as a circuit breaker.
type Executor interface {
	Execute(name string, fn func() error) error
}

// Config holds summarizer settings.
type Config struct {
	// APIKey authenticates against the completion API. Summaries are skipped when empty.
	APIKey string

	// BaseURL overrides the API endpoint. Optional.
	BaseURL string

	Model         string
	MaxTokens     int
	Temperature   float32
	Timeout       time.Duration
	MaxStudies    int
	SnippetLength int
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxStudies == 0 {
		c.MaxStudies = DefaultMaxStudies
	}
	if c.SnippetLength == 0 {
		c.SnippetLength = DefaultSnippetLength
	}
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithMetrics records summary outcomes on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Summarizer) {
		s.metrics = m
	}
}

// WithExecutor runs every completion call through e.
func WithExecutor(e Executor) Option {
	return func(s *Summarizer) {
		s.executor = e
	}
}

// Summarizer turns a set of studies into a two to three sentence summary.
// It never fails: any problem yields an empty summary.
type Summarizer struct {
	config   Config
	client   ChatCompleter
	logger   zerolog.Logger
	metrics  MetricsRecorder
	executor Executor
}

// NewSummarizer creates a Summarizer backed by the OpenAI API.
func NewSummarizer(cfg Config, logger zerolog.Logger, opts ...Option) *Summarizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewSummarizerWithClient(cfg, openai.NewClientWithConfig(clientCfg), logger, opts...)
}

// NewSummarizerWithClient creates a Summarizer with a custom completion client.
func NewSummarizerWithClient(cfg Config, client ChatCompleter, logger zerolog.Logger, opts ...Option) *Summarizer {
	cfg.applyDefaults()
	s := &Summarizer{
		config: cfg,
		client: client,
		logger: logger.With().Str("component", "summarizer").Str("model", cfg.Model).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether summaries will be requested.
func (s *Summarizer) Enabled() bool {
	return s.config.APIKey != "" && s.client != nil
}

// Summarize returns a short summary of studies for query, or "" when there
// is nothing to summarize, no API key is configured, or the request fails.
func (s *Summarizer) Summarize(ctx context.Context, query string, studies []domain.Study) string {
	if len(studies) == 0 {
		return ""
	}
	if !s.Enabled() {
		s.logger.Debug().Msg("summarizer not configured, skipping")
		s.record(OutcomeSkipped, "", 0)
		return ""
	}

	start := time.Now()
	summary, err := s.complete(ctx, s.buildUserMessage(query, studies))
	duration := time.Since(start)

	if err != nil {
		errType := ErrorType(err)
		s.logger.Error().
			Err(err).
			Str("query", query).
			Str("error_type", errType).
			Dur("duration", duration).
			Msg("summarization failed")
		s.record(OutcomeFailed, errType, duration.Seconds())
		return ""
	}

	s.logger.Debug().
		Int("studies", len(studies)).
		Int("summary_length", len([]rune(summary))).
		Dur("duration", duration).
		Msg("summarization completed")
	s.record(OutcomeGenerated, "", duration.Seconds())
	return summary
}

// complete performs one completion call, through the executor if configured.
func (s *Summarizer) complete(ctx context.Context, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var summary string
	call := func() error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userMessage},
			},
			MaxTokens:   s.config.MaxTokens,
			Temperature: s.config.Temperature,
		})
		if err != nil {
			return fmt.Errorf("chat completion: %w", fromOpenAIError(err))
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		summary = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(BreakerName, call)
	} else {
		err = call()
	}
	return summary, err
}

// buildUserMessage renders the query and the leading studies into the prompt.
func (s *Summarizer) buildUserMessage(query string, studies []domain.Study) string {
	limit := min(len(studies), s.config.MaxStudies)

	items := make([]string, 0, limit)
	for i, study := range studies[:limit] {
		items = append(items, fmt.Sprintf("%d. [%s] %s\n   %s", i+1, study.Source, study.Title, s.snippet(study.Abstract)))
	}

	return fmt.Sprintf("Search query: \"%s\"\n\nStudies found (%d total):\n\n%s\n\nProvide a 2-3 sentence evidence-based summary.",
		query, len(studies), strings.Join(items, "\n\n"))
}

// snippet returns the leading SnippetLength characters of an abstract.
func (s *Summarizer) snippet(abstract string) string {
	if abstract == "" {
		return noAbstract
	}
	n := 0
	for i := range abstract {
		if n == s.config.SnippetLength {
			return abstract[:i]
		}
		n++
	}
	return abstract
}

func (s *Summarizer) record(outcome, errType string, durationSeconds float64) {
	if s.metrics != nil {
		s.metrics.RecordSummary(outcome, errType, durationSeconds)
	}
}

package evidence

import (
	"github.com/rs/zerolog"

	"github.com/helixir/evidence-search-service/internal/config"
	"github.com/helixir/evidence-search-service/internal/llm"
	"github.com/helixir/evidence-search-service/internal/papersources"
	"github.com/helixir/evidence-search-service/internal/papersources/clinicaltrials"
	"github.com/helixir/evidence-search-service/internal/papersources/europepmc"
	"github.com/helixir/evidence-search-service/internal/papersources/openalex"
	"github.com/helixir/evidence-search-service/internal/papersources/pubmed"
	"github.com/helixir/evidence-search-service/internal/resilience"
	"github.com/helixir/evidence-search-service/internal/spellcheck"
)

// Recorder is every metrics interface the pipeline reports to.
// *observability.Metrics satisfies it.
type Recorder interface {
	MetricsRecorder
	papersources.MetricsRecorder
	spellcheck.MetricsRecorder
	llm.MetricsRecorder
	resilience.StateRecorder
}

// Components holds a pipeline wired from configuration.
type Components struct {
	Service    *Service
	Registry   *papersources.Registry
	Summarizer *llm.Summarizer

	// Suggester is nil unless spell correction is enabled.
	Suggester *spellcheck.ESpellClient

	// Breakers is nil unless resilience is enabled.
	Breakers *resilience.BreakerRegistry
}

// NewFromConfig wires the corrector, the four sources, the summarizer and,
// when enabled, the circuit breakers. metrics may be nil.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger, metrics Recorder) *Components {
	c := &Components{}

	var registryOpts []papersources.RegistryOption
	var summarizerOpts []llm.Option
	if metrics != nil {
		registryOpts = append(registryOpts, papersources.WithMetrics(metrics))
		summarizerOpts = append(summarizerOpts, llm.WithMetrics(metrics))
	}

	if cfg.Resilience.Enabled {
		c.Breakers = resilience.NewBreakerRegistry(resilience.Config{
			MaxRequests:      cfg.Resilience.MaxRequests,
			Interval:         cfg.Resilience.Interval,
			Timeout:          cfg.Resilience.OpenTimeout,
			FailureThreshold: cfg.Resilience.FailureThreshold,
			MinRequests:      cfg.Resilience.MinRequests,
		}, logger, metrics)
		registryOpts = append(registryOpts, papersources.WithExecutor(c.Breakers))
		summarizerOpts = append(summarizerOpts, llm.WithExecutor(c.Breakers))
		logger.Info().Msg("circuit breakers enabled")
	}

	c.Registry = papersources.NewRegistry(logger, registryOpts...)
	pm := registerSources(c.Registry, cfg, logger)

	// ESpell and PubMed share one NCBI key, so they share its rate limiter.
	var suggester spellcheck.Suggester
	if cfg.Spellcheck.Enabled {
		c.Suggester = spellcheck.NewESpellClientWithHTTPClient(spellcheck.ESpellConfig{
			BaseURL: cfg.Spellcheck.BaseURL,
			APIKey:  cfg.PaperSources.PubMed.APIKey,
			Timeout: cfg.Spellcheck.Timeout,
		}, pm.HTTPClient())
		suggester = c.Suggester
	}
	corrector := spellcheck.NewCorrector(suggester, logger, metrics)

	c.Summarizer = llm.NewSummarizer(llm.Config{
		APIKey:        cfg.LLM.OpenAI.APIKey,
		BaseURL:       cfg.LLM.OpenAI.BaseURL,
		Model:         cfg.LLM.OpenAI.Model,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   float32(cfg.LLM.Temperature),
		Timeout:       cfg.LLM.Timeout,
		MaxStudies:    cfg.LLM.MaxStudies,
		SnippetLength: cfg.LLM.SnippetLength,
	}, logger, summarizerOpts...)

	c.Service = NewService(corrector, c.Registry, c.Summarizer, metrics, logger)
	return c
}

// registerSources registers the four sources in merge priority order and
// returns the PubMed client. Disabled sources stay registered so they can be
// listed, but are never searched.
func registerSources(registry *papersources.Registry, cfg *config.Config, logger zerolog.Logger) *pubmed.Client {
	// PubMed.
	pmCfg := cfg.PaperSources.PubMed
	pm := pubmed.New(pubmed.Config{
		BaseURL:    pmCfg.BaseURL,
		APIKey:     pmCfg.APIKey,
		Timeout:    pmCfg.Timeout,
		RateLimit:  pmCfg.RateLimit,
		MaxResults: pmCfg.MaxResults,
		Enabled:    pmCfg.Enabled,
	})
	registry.Register(pm)

	// ClinicalTrials.gov.
	ctCfg := cfg.PaperSources.ClinicalTrials
	registry.Register(clinicaltrials.New(clinicaltrials.Config{
		BaseURL:    ctCfg.BaseURL,
		Timeout:    ctCfg.Timeout,
		RateLimit:  ctCfg.RateLimit,
		MaxResults: ctCfg.MaxResults,
		Enabled:    ctCfg.Enabled,
	}))

	// Europe PMC.
	epCfg := cfg.PaperSources.EuropePMC
	registry.Register(europepmc.New(europepmc.Config{
		BaseURL:    epCfg.BaseURL,
		Timeout:    epCfg.Timeout,
		RateLimit:  epCfg.RateLimit,
		MaxResults: epCfg.MaxResults,
		Enabled:    epCfg.Enabled,
	}))

	// OpenAlex.
	oaCfg := cfg.PaperSources.OpenAlex
	registry.Register(openalex.New(openalex.Config{
		BaseURL:    oaCfg.BaseURL,
		APIKey:     oaCfg.APIKey,
		Email:      oaCfg.Email,
		Timeout:    oaCfg.Timeout,
		RateLimit:  oaCfg.RateLimit,
		MaxResults: oaCfg.MaxResults,
		Enabled:    oaCfg.Enabled,
	}))

	for _, s := range registry.AllSources() {
		logger.Info().
			Str("source", s.Name()).
			Bool("enabled", s.IsEnabled()).
			Msg("registered evidence source")
	}
	return pm
}

// EnvironmentWarnings lists missing optional credentials that degrade the service.
func EnvironmentWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.LLM.OpenAI.APIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY is not set: AI summarization will be disabled")
	}
	if cfg.PaperSources.PubMed.APIKey == "" {
		warnings = append(warnings, "NCBI_API_KEY is not set: PubMed rate limits may apply")
	}
	return warnings
}

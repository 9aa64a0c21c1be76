package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/evidence-search-service/internal/config"
	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/evidence"
	"github.com/helixir/evidence-search-service/internal/observability"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one evidence search",
	Long: `Search corrects the spelling of the query, searches every enabled source
concurrently, removes duplicate titles and summarizes the result when an
OpenAI API key is configured.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringP("query", "q", "", "search text (required)")
	searchCmd.Flags().Int("max-results", domain.DefaultResultsPerSource, "maximum results per source (1-50)")
	searchCmd.Flags().Bool("json", false, "output the result as JSON")
	_ = searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	query, _ := cmd.Flags().GetString("query")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	asJSON, _ := cmd.Flags().GetBool("json")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     "console",
		Writer:     cmd.ErrOrStderr(),
		TimeFormat: cfg.Logging.TimeFormat,
	})
	for _, warning := range evidence.EnvironmentWarnings(cfg) {
		logger.Warn().Msg(warning)
	}

	components := evidence.NewFromConfig(cfg, logger, nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Pipeline.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RequestTimeout)
		defer cancel()
	}
	ctx = observability.WithCorrelationID(ctx, uuid.NewString())

	result, err := components.Service.Search(ctx, domain.SearchQuery{
		Query:               query,
		MaxResultsPerSource: maxResults,
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func printResult(w io.Writer, result *domain.SearchResult) {
	if result.CorrectedQuery != "" {
		fmt.Fprintf(w, "Showing results for %q (searched for %q)\n\n", result.CorrectedQuery, result.Query)
	}
	if result.Summary != "" {
		fmt.Fprintf(w, "Summary:\n%s\n\n", result.Summary)
	}

	fmt.Fprintf(w, "%d studies\n", result.TotalResults)
	for i, study := range result.Studies {
		fmt.Fprintf(w, "\n%d. [%s] %s\n", i+1, study.Source, study.Title)
		if meta := studyMeta(study); meta != "" {
			fmt.Fprintf(w, "   %s\n", meta)
		}
		if study.URL != "" {
			fmt.Fprintf(w, "   %s\n", study.URL)
		}
	}
}

func studyMeta(study domain.Study) string {
	var parts []string
	if len(study.Authors) > 0 {
		authors := study.Authors
		if len(authors) > 3 {
			authors = append(authors[:3:3], "et al.")
		}
		parts = append(parts, strings.Join(authors, ", "))
	}
	if study.Journal != "" {
		parts = append(parts, study.Journal)
	}
	if study.PublicationDate != "" {
		parts = append(parts, study.PublicationDate)
	}
	return strings.Join(parts, " | ")
}

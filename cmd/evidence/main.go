// Package main is the entry point for the evidence command line tool. It runs
// the same search pipeline as the HTTP server once per invocation.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Search medical literature and clinical trials from the command line",
	Long: `evidence runs one aggregated search across PubMed, ClinicalTrials.gov,
Europe PMC and OpenAlex, removes duplicate titles and prints the studies
with an optional AI summary.

Configuration is read the same way as the server: config.yaml, a .env file
and EVIDENCE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command redbiom drives a sparse sample/feature count-table index:
// loading count tables and metadata into named contexts, then searching
// and fetching against them. Grounded on the teacher's cmd/srake/main.go
// root command, adapted to redbiom's command surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/cli"
)

var (
	version = "0.0.1-alpha"
	commit  = "dev"
	date    = "unknown"
)

var (
	noColor bool
	quiet   bool
	verbose bool
	yes     bool
	debug   bool
	cfgPath string
	logLvl  string
)

var rootCmd = &cobra.Command{
	Use:   "redbiom",
	Short: "Sparse sample/feature count-table index and retrieval engine",
	Long: `redbiom indexes sparse sample-by-feature count tables (e.g. OTU/ASV
tables) and their metadata into named contexts, then lets you search and
fetch against them by feature, sample, or metadata value.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Create a context and load a count table into it
  redbiom create-context --description "16S, closed-ref, 100nt" deblur-100nt
  redbiom load-sample-data --context deblur-100nt --table otu_table.txt

  # Search for samples containing a feature
  redbiom search-features --context deblur-100nt TACGTAGGTGGCAAGCGTTATCCGGA

  # Run the HTTP API
  redbiom server --port 7379`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "Assume yes to all confirmation prompts")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to redbiom.yaml (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&logLvl, "log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		cli.NewCreateContextCmd(),
		cli.NewLoadSampleDataCmd(),
		cli.NewLoadSampleMetadataCmd(),
		cli.NewFetchSamplesCmd(),
		cli.NewFetchFeaturesCmd(),
		cli.NewSearchFeaturesCmd(),
		cli.NewSearchSamplesCmd(),
		cli.NewSearchMetadataCmd(),
		cli.NewSummarizeContextsCmd(),
		cli.NewSummarizeMetadataCmd(),
		cli.NewSummarizeTaxonomyCmd(),
		cli.NewSelectSamplesFromMetadataCmd(),
		cli.NewServerCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

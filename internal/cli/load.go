package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/loader"
	"github.com/nishad/redbiom/internal/model"
)

// NewLoadSampleDataCmd builds the load-sample-data command.
func NewLoadSampleDataCmd() *cobra.Command {
	var (
		context_ string
		table    string
		tag      string
	)

	cmd := &cobra.Command{
		Use:   "load-sample-data",
		Short: "Load a samples-by-features count table into a context",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := classicTSVTable(table)
			if err != nil {
				return err
			}

			loaded, err := a.Loader.LoadSampleData(cmd.Context(), context_, loader.SparseTable{Counts: counts}, model.Tag(tag))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d samples into %q\n", loaded, context_)
			return nil
		},
	}

	cmd.Flags().StringVar(&context_, "context", "", "Context to load data into")
	cmd.Flags().StringVar(&table, "table", "", "Path to a classic-format (TSV) samples-by-features count table")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag to disambiguate this load from other loads of the same sample ids (default UNTAGGED)")
	cmd.MarkFlagRequired("context")
	cmd.MarkFlagRequired("table")
	return cmd
}

// NewLoadSampleMetadataCmd builds the load-sample-metadata command.
func NewLoadSampleMetadataCmd() *cobra.Command {
	var (
		metadata   string
		tag        string
		fullSearch bool
	)

	cmd := &cobra.Command{
		Use:   "load-sample-metadata",
		Short: "Load per-sample metadata (context-independent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := tsvRows(metadata)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			loaded, err := a.Loader.LoadSampleMetadata(ctx, rows, model.Tag(tag))
			if err != nil {
				return err
			}
			if fullSearch {
				if err := a.Loader.LoadSampleMetadataFullSearch(ctx, rows, model.Tag(tag)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded metadata for %d samples\n", loaded)
			return nil
		},
	}

	cmd.Flags().StringVar(&metadata, "metadata", "", "Path to a TSV file of sample_id plus metadata columns")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag to disambiguate this load from other loads of the same sample ids (default UNTAGGED)")
	cmd.Flags().BoolVar(&fullSearch, "full-search", true, "Also stem and index metadata values/columns for search-metadata")
	cmd.MarkFlagRequired("metadata")
	return cmd
}

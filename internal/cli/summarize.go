package cli

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/model"
)

// NewSummarizeContextsCmd builds the summarize-contexts command: lists
// every context with its description and sample/feature counts.
func NewSummarizeContextsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize-contexts",
		Short: "List contexts and their sample/feature counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			contexts, err := a.Index.Contexts(ctx)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 80
			table.AddRow("CONTEXT", "SAMPLES", "FEATURES", "DESCRIPTION")
			for _, c := range contexts {
				samples, err := a.Index.Size(ctx, c.Name, model.AxisSample)
				if err != nil {
					return err
				}
				features, err := a.Index.Size(ctx, c.Name, model.AxisFeature)
				if err != nil {
					return err
				}
				table.AddRow(c.Name, samples, features, c.Description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	return cmd
}

// NewSummarizeMetadataCmd builds the summarize-metadata command: lists
// represented metadata categories and how many samples carry each.
func NewSummarizeMetadataCmd() *cobra.Command {
	var column string

	cmd := &cobra.Command{
		Use:   "summarize-metadata",
		Short: "Summarize represented metadata categories, or one column's value distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()

			if column != "" {
				values, err := a.Metadata.ColumnValues(ctx, column)
				if err != nil {
					return err
				}
				counts := make(map[string]int)
				for _, v := range values {
					counts[v]++
				}
				table := uitable.New()
				table.AddRow("VALUE", "COUNT")
				for v, n := range counts {
					table.AddRow(v, n)
				}
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			}

			counts, err := a.Metadata.SampleCountsPerColumn(ctx)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("CATEGORY", "SAMPLES")
			for category, n := range counts {
				table.AddRow(category, n)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&column, "column", "", "Show the value distribution for a single metadata column instead")
	return cmd
}

// NewSummarizeTaxonomyCmd builds the summarize-taxonomy command: prints a
// taxon's descendent lineage within a context, grounded on
// original_source's taxon_descendents/search_taxon.
func NewSummarizeTaxonomyCmd() *cobra.Command {
	var context_ string

	cmd := &cobra.Command{
		Use:   "summarize-taxonomy TAXON",
		Short: "List the descendents of a taxon within a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			descendents, err := a.Contexts.TaxonDescendents(cmd.Context(), context_, args[0])
			if err != nil {
				return err
			}
			printLines(cmd, descendents)
			return nil
		},
	}

	cmd.Flags().StringVar(&context_, "context", "", "Context to search within")
	cmd.MarkFlagRequired("context")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/app"
	"github.com/nishad/redbiom/internal/model"
)

// NewSearchFeaturesCmd builds the search-features command: returns the
// samples containing any (or, with --exact, all) of the given features.
func NewSearchFeaturesCmd() *cobra.Command {
	var (
		context_ string
		from     string
		exact    bool
	)

	cmd := &cobra.Command{
		Use:   "search-features [features...]",
		Short: "Get samples containing the given features",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readIDs(cmd, from, args)
			if err != nil {
				return err
			}
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Index.RequireContext(cmd.Context(), context_); err != nil {
				return err
			}
			names, err := app.AxisSearch(cmd.Context(), a, context_, ids, model.AxisFeature, exact)
			if err != nil {
				return err
			}
			printLines(cmd, names)
			return nil
		},
	}

	cmd.Flags().StringVar(&context_, "context", "", "Context to search within")
	cmd.Flags().StringVar(&from, "from", "", "File (or - for stdin) of newline-delimited features to search for")
	cmd.Flags().BoolVar(&exact, "exact", false, "All found samples must contain every specified feature")
	cmd.MarkFlagRequired("context")
	return cmd
}

// NewSearchSamplesCmd builds the search-samples command: returns the
// features present in any (or, with --exact, all) of the given samples.
func NewSearchSamplesCmd() *cobra.Command {
	var (
		context_ string
		from     string
		exact    bool
	)

	cmd := &cobra.Command{
		Use:   "search-samples [samples...]",
		Short: "Get features present in the given samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readIDs(cmd, from, args)
			if err != nil {
				return err
			}
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.Index.RequireContext(ctx, context_); err != nil {
				return err
			}

			res, err := a.SampleResolver(context_).Resolve(ctx, ids)
			if err != nil {
				return err
			}
			rbIDs := make([]string, 0, len(res.Resolved))
			for _, rid := range res.Resolved {
				rbIDs = append(rbIDs, string(rid))
			}
			for _, candidates := range res.Ambiguous {
				for _, c := range candidates {
					rbIDs = append(rbIDs, string(c))
				}
			}

			names, err := app.AxisSearch(ctx, a, context_, rbIDs, model.AxisSample, exact)
			if err != nil {
				return err
			}
			printLines(cmd, names)
			return nil
		},
	}

	cmd.Flags().StringVar(&context_, "context", "", "Context to search within")
	cmd.Flags().StringVar(&from, "from", "", "File (or - for stdin) of newline-delimited samples to search for")
	cmd.Flags().BoolVar(&exact, "exact", false, "All found features must be present in every specified sample")
	cmd.MarkFlagRequired("context")
	return cmd
}

// NewSearchMetadataCmd builds the search-metadata command: a stemmed
// set-expression search over metadata values or category names,
// optionally narrowed by a where-clause.
func NewSearchMetadataCmd() *cobra.Command {
	var categories bool

	cmd := &cobra.Command{
		Use:   "search-metadata QUERY",
		Short: "Search sample metadata by stemmed free text, optionally narrowed with a where-clause",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Query.MetadataFull(cmd.Context(), args[0], categories)
			if err != nil {
				return err
			}
			printLines(cmd, results)
			return nil
		},
	}

	cmd.Flags().BoolVar(&categories, "categories", false, "Search metadata category names instead of sample values")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/fetcher"
)

func ambiguityPolicyFromFlag(s string) (fetcher.AmbiguityPolicy, error) {
	switch s {
	case "", "none":
		return fetcher.PolicyNone, nil
	case "merge":
		return fetcher.PolicyMerge, nil
	case "most-reads":
		return fetcher.PolicyMostReads, nil
	default:
		return "", fmt.Errorf("unknown --ambiguity value %q (want none|merge|most-reads)", s)
	}
}

func reportAmbiguities(cmd *cobra.Command, amb fetcher.AmbiguityMap) {
	if len(amb) == 0 {
		return
	}
	w := cmd.ErrOrStderr()
	for id, candidates := range amb {
		fmt.Fprintf(w, "ambiguous: %s -> %v\n", id, candidates)
	}
}

// NewFetchSamplesCmd builds the fetch-samples command: materializes a
// samples-by-features table for the given sample ids.
func NewFetchSamplesCmd() *cobra.Command {
	var (
		context_  string
		from      string
		ambiguity string
		taxonomy  bool
		normalize []string
	)

	cmd := &cobra.Command{
		Use:   "fetch-samples [samples...]",
		Short: "Materialize a samples-by-features table for the given sample ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readIDs(cmd, from, args)
			if err != nil {
				return err
			}
			policy, err := ambiguityPolicyFromFlag(ambiguity)
			if err != nil {
				return err
			}

			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			table, amb, err := a.Fetcher.Fetch(cmd.Context(), context_, ids, fetcher.FetchOptions{
				AmbiguityPolicy:   policy,
				IncludeTaxonomy:   taxonomy,
				NormalizeTaxonomy: normalize,
			})
			if err != nil {
				return err
			}
			reportAmbiguities(cmd, amb)
			writeClassicTSV(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&context_, "context", "", "Context to fetch from")
	cmd.Flags().StringVar(&from, "from", "", "File (or - for stdin) of newline-delimited sample ids")
	cmd.Flags().StringVar(&ambiguity, "ambiguity", "none", "Ambiguity resolution policy: none|merge|most-reads")
	cmd.Flags().BoolVar(&taxonomy, "taxonomy", false, "Passed to the fetcher; the TSV output has no taxonomy column")
	cmd.Flags().StringSliceVar(&normalize, "normalize-ranks", nil, "Rank prefixes to normalize taxonomy lineages to")
	cmd.MarkFlagRequired("context")
	return cmd
}

// NewFetchFeaturesCmd builds the fetch-features command: materializes a
// samples-by-features table for the given feature ids.
func NewFetchFeaturesCmd() *cobra.Command {
	var (
		context_ string
		from     string
		exact    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch-features [features...]",
		Short: "Materialize a samples-by-features table for the given feature ids",
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

			table, amb, err := a.Fetcher.Fetch(cmd.Context(), context_, ids, fetcher.FetchOptions{
				ByFeature: true,
				Exact:     exact,
			})
			if err != nil {
				return err
			}
			reportAmbiguities(cmd, amb)
			writeClassicTSV(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&context_, "context", "", "Context to fetch from")
	cmd.Flags().StringVar(&from, "from", "", "File (or - for stdin) of newline-delimited feature ids")
	cmd.Flags().BoolVar(&exact, "exact", false, "Require samples to contain every requested feature (intersection) rather than any (union)")
	cmd.MarkFlagRequired("context")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"
)

// NewSelectSamplesFromMetadataCmd builds the select-samples-from-metadata
// command: given a set of samples, keep only those also matched by a
// metadata search query. Grounded on
// original_source/redbiom/commands/select.py's select_samples_from_metadata.
func NewSelectSamplesFromMetadataCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "select-samples-from-metadata QUERY [samples...]",
		Short: "Given samples, select the ones also matched by a metadata query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			ids, err := readIDs(cmd, from, args[1:])
			if err != nil {
				return err
			}

			a, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			matched, err := a.Query.MetadataFull(cmd.Context(), query, false)
			if err != nil {
				return err
			}
			matchedSet := make(map[string]bool, len(matched))
			for _, m := range matched {
				matchedSet[m] = true
			}

			var selected []string
			for _, id := range ids {
				if matchedSet[id] {
					selected = append(selected, id)
				}
			}
			printLines(cmd, selected)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "File (or - for stdin) of newline-delimited samples to select among")
	return cmd
}

// Package cli implements the cobra command tree exposed by cmd/redbiom:
// create-context, load-sample-metadata, load-sample-data, fetch-samples,
// fetch-features, search-features, search-samples, search-metadata,
// summarize-contexts/metadata/taxonomy, select-samples-from-metadata, and
// server. Command construction follows the teacher's NewXCmd() factory
// pattern (one exported constructor per command group) and its
// stdin-or-args reading convention, adapted from redbiom's
// util.from_or_nargs.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/app"
	"github.com/nishad/redbiom/internal/config"
)

// NewCreateContextCmd builds the create-context command.
func NewCreateContextCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create-context NAME",
		Short: "Create a new context to load sample data into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.Index.CreateContext(ctx, args[0], description); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created context %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Human-readable description of the context")
	cmd.MarkFlagRequired("description")
	return cmd
}

// appFromCmd loads the config and opens an App for command handlers
// that need the full store wiring. Each invocation opens its own KV
// connection since a CLI process runs exactly one command before
// exiting, matching the teacher's db-per-invocation pattern in
// cmd/srake.
func appFromCmd(cmd *cobra.Command) (*app.App, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = config.GetConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.NewApp(cfg, nil)
}

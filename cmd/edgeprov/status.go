package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/edgeprov/internal/app"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded provisioning state",
	Long: `Status prints each step recorded in the state file with its last status and
the artifacts collected so far.

The state file comes from --state-file, then from the configuration's
deployment.state_file, then the default location.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	edgeprov := newApp(cmd.OutOrStdout(), app.WithLogger(logger))

	path, err := resolveStatePath(ctx, edgeprov)
	if err != nil {
		return err
	}
	doc, err := edgeprov.Status(ctx, path)
	if err != nil {
		return err
	}
	edgeprov.PrintStatus(doc)
	return nil
}

// resolveStatePath picks the state file for commands that do not run steps.
func resolveStatePath(ctx context.Context, edgeprov *app.Edgeprov) (string, error) {
	if stateFile != "" {
		return stateFile, nil
	}
	cfg, err := edgeprov.Load(ctx, cfgFile, config.Overrides{})
	if err != nil {
		if config.IsUserError(err, config.ErrCodeConfigNotFound) {
			return config.DefaultStateFile, nil
		}
		return "", err
	}
	return cfg.Deployment.StateFile, nil
}

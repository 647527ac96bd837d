package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/edgeprov/internal/app"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and print the planned steps",
	Long: `Validate loads the configuration, resolves every enabled step and prints
them in the order a run would visit them. Nothing on the node is touched.

Exit codes:
  0 - configuration is valid
  2 - configuration could not be read, is invalid, or has a dependency cycle

Examples:
  edgeprov validate
  edgeprov validate --config edge-01.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	edgeprov := newApp(cmd.OutOrStdout(), app.WithLogger(logger))

	result, err := edgeprov.Validate(ctx, cfgFile, config.Overrides{StateFile: stateFile})
	if err != nil {
		return err
	}
	edgeprov.PrintPlan(result)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration %s is valid.\n", cfgFile)
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/edgeprov/internal/adapters/prompt"
	"github.com/felixgeelhaar/edgeprov/internal/app"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
)

var (
	dryRun           bool
	force            bool
	skipVerification bool
	continueOnError  bool
	artifactFile     string
	metricsFile      string
	yesFlag          bool
)

func registerProvisionFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run checks and report what would change without changing anything")
	cmd.Flags().BoolVar(&force, "force", false, "apply every step even when it reports satisfied")
	cmd.Flags().BoolVar(&skipVerification, "skip-verification", false, "do not run post-apply verification")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep running independent steps after a failure")
	cmd.Flags().StringVar(&artifactFile, "artifact-file", "", "artifact file (default: deployment.artifact_file)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "answer yes to confirmations (forced K3s reinstall)")
}

func runProvision(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	edgeprov := newApp(cmd.OutOrStdout(),
		app.WithLogger(logger),
		app.WithDecider(prompt.ForTerminal(yesFlag)),
	)

	outcome, err := edgeprov.Run(ctx, app.RunOptions{
		ConfigPath: cfgFile,
		Overrides: config.Overrides{
			DryRun:           dryRun,
			Force:            force,
			SkipVerification: skipVerification,
			ContinueOnError:  continueOnError,
			StateFile:        stateFile,
			ArtifactFile:     artifactFile,
		},
		MetricsFile: metricsFile,
	})
	if outcome == nil {
		return err
	}

	report := outcome.Report
	edgeprov.PrintSummary(report)
	edgeprov.PrintFailure(report)
	if err != nil {
		return err
	}

	switch {
	case report.Interrupted():
		return &exitError{code: ExitInterrupted, msg: "run interrupted"}
	case report.Failed():
		return &exitError{code: ExitStepFailed, msg: "run failed"}
	}
	if outcome.ArtifactPath != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Artifacts written to %s\n", outcome.ArtifactPath)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/edgeprov/internal/adapters/logging"
	"github.com/felixgeelhaar/edgeprov/internal/app"
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitStepFailed  = 1
	ExitConfig      = 2
	ExitConcurrent  = 3
	ExitSetup       = 4
	ExitInterrupted = 130
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "edgeprov.json"

var (
	// Global flags
	cfgFile   string
	stateFile string
	verbose   bool
	logFormat string
	logLevel  string
)

// newApp builds the application. Tests replace it to inject fakes.
var newApp = func(out io.Writer, opts ...app.Option) *app.Edgeprov {
	return app.New(out, opts...)
}

var rootCmd = &cobra.Command{
	Use:   "edgeprov",
	Short: "Provision an edge node for Azure IoT Operations",
	Long: `edgeprov turns a bare Ubuntu or Debian host into a K3s node connected to
Azure Arc and running Azure IoT Operations with the selected workload modules.

Every step checks the node first and only changes what is missing, so a run
can be repeated safely. Progress is recorded in a state file; after a failure,
fix the problem and run edgeprov again to continue where it stopped.

Exit codes:
  0   - all steps succeeded or were already in place
  1   - a step failed
  2   - the configuration could not be read or is invalid
  3   - another edgeprov run holds the state lock
  4   - any other setup error
  130 - interrupted`,
	Args:          cobra.NoArgs,
	RunE:          runProvision,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.As(err, new(*exitError)) {
		printErrorTo(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", DefaultConfigPath, "configuration file (.json, .yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "state file (default: deployment.state_file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output, including command output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error); --verbose implies debug")

	registerProvisionFlags(rootCmd)

	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text\tHuman-readable lines", "json\tOne JSON object per line"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the stderr logger from the global flags.
func newLogger(w io.Writer) (ports.Logger, error) {
	var jsonFormat bool
	switch logFormat {
	case "", "text":
	case "json":
		jsonFormat = true
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}

	level, err := ports.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(w),
		logging.WithLevel(level),
		logging.WithJSONFormat(jsonFormat),
	), nil
}

// exitError carries an exit code for an outcome already reported to the user.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	var exitErr *exitError
	var userErr *config.UserError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.As(err, &userErr):
		return ExitConfig
	case errors.Is(err, compiler.ErrCyclicDependency):
		return ExitConfig
	case errors.Is(err, state.ErrConcurrentRun):
		return ExitConcurrent
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitSetup
	}
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	if userErr := config.GetUserError(err); userErr != nil {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if userErr.Underlying != nil && (verbose || userErr.Code != config.ErrCodeConfigNotFound) {
			msg += fmt.Sprintf("\n\nDetails: %v", userErr.Underlying)
		}
		return msg
	}
	if errors.Is(err, state.ErrConcurrentRun) {
		return err.Error() + "\n\nSuggestion: wait for the other run to finish, or remove a stale lock file left by a crashed run"
	}
	return err.Error()
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

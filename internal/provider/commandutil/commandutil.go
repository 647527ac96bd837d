// Package commandutil holds the command helpers shared by providers.
package commandutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// probeLimit bounds how many lookups MissingCommands runs at once.
const probeLimit = 4

// AptEnv makes apt-get run without prompting.
const AptEnv = "DEBIAN_FRONTEND=noninteractive"

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return false
}

// Run executes cmd and turns an unsuccessful result into a *ports.CommandError
// so the output tail travels with the error.
func Run(ctx context.Context, runner ports.CommandRunner, cmd ports.Command) (ports.CommandResult, error) {
	result, err := runner.Run(ctx, cmd)
	if err != nil {
		return result, fmt.Errorf("run %s: %w", cmd.Name, err)
	}
	if !result.Success() {
		return result, ports.NewCommandError(cmd, result)
	}
	return result, nil
}

// Probe runs a read-only command and reports whether it succeeded. A missing
// executable is a plain "no"; any other start failure is returned.
func Probe(ctx context.Context, runner ports.CommandRunner, cmd ports.Command) (ports.CommandResult, bool, error) {
	result, err := runner.Run(ctx, cmd)
	if err != nil {
		if IsCommandNotFound(err) {
			return result, false, nil
		}
		return result, false, fmt.Errorf("probe %s: %w", cmd.Name, err)
	}
	return result, result.Success(), nil
}

// HasCommand reports whether name resolves on PATH.
func HasCommand(ctx context.Context, runner ports.CommandRunner, name string) (bool, error) {
	_, ok, err := Probe(ctx, runner, ports.Cmd("which", name))
	return ok, err
}

// MissingCommands looks names up concurrently and returns the ones not on
// PATH, in the order given.
func MissingCommands(ctx context.Context, runner ports.CommandRunner, names ...string) ([]string, error) {
	found := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)
	for i, name := range names {
		g.Go(func() error {
			ok, err := HasCommand(gctx, runner, name)
			found[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []string
	for i, name := range names {
		if !found[i] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Kubectl builds a kubectl command bound to a kubeconfig file.
func Kubectl(kubeconfig string, args ...string) ports.Command {
	full := make([]string, 0, len(args)+2)
	full = append(full, "--kubeconfig", kubeconfig)
	full = append(full, args...)
	return ports.Cmd("kubectl", full...)
}

// Az builds an Azure CLI command with prompts disabled.
func Az(args ...string) ports.Command {
	full := make([]string, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, "--only-show-errors")
	return ports.Cmd("az", full...)
}

package mocks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

func TestCommandRunner_AddResult(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddResult("k3s", []string{"--version"}, ports.CommandResult{
		ExitCode: 0,
		Stdout:   "k3s version v1.30.4+k3s1",
	})

	result, err := runner.Run(context.Background(), ports.Cmd("k3s", "--version"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Stdout != "k3s version v1.30.4+k3s1" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "k3s version v1.30.4+k3s1")
	}
}

func TestCommandRunner_NotFound(t *testing.T) {
	runner := NewCommandRunner()

	_, err := runner.Run(context.Background(), ports.Cmd("unknown", "command"))
	if err == nil {
		t.Error("Run() should return error for unregistered command")
	}
}

func TestCommandRunner_Fallback(t *testing.T) {
	runner := NewCommandRunner()
	runner.SetFallback(ports.CommandResult{ExitCode: 1})

	result, err := runner.Run(context.Background(), ports.Cmd("anything"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestCommandRunner_Sequence(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddSequence("kubectl", []string{"get", "nodes"},
		ports.CommandResult{ExitCode: 1},
		ports.CommandResult{ExitCode: 0, Stdout: "Ready"},
	)

	ctx := context.Background()
	first, _ := runner.Run(ctx, ports.Cmd("kubectl", "get", "nodes"))
	second, _ := runner.Run(ctx, ports.Cmd("kubectl", "get", "nodes"))
	third, _ := runner.Run(ctx, ports.Cmd("kubectl", "get", "nodes"))

	if first.ExitCode != 1 || second.ExitCode != 0 || third.Stdout != "Ready" {
		t.Errorf("sequence = %d, %d, %q; want 1, 0, \"Ready\"", first.ExitCode, second.ExitCode, third.Stdout)
	}
}

func TestCommandRunner_AddError(t *testing.T) {
	runner := NewCommandRunner()
	want := errors.New("exec: az: not found")
	runner.AddError("az", []string{"version"}, want)

	_, err := runner.Run(context.Background(), ports.Cmd("az", "version"))
	if !errors.Is(err, want) {
		t.Errorf("Run() error = %v, want %v", err, want)
	}
}

func TestCommandRunner_CancelledContext(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddResult("true", nil, ports.CommandResult{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, ports.Cmd("true"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if runner.CallCount("true") != 1 {
		t.Error("cancelled calls are still recorded")
	}
}

func TestCommandRunner_RecordsCalls(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddResult("apt-get", []string{"install", "-y", "jq"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("apt-get", []string{"install", "-y", "curl"}, ports.CommandResult{ExitCode: 0})

	_, _ = runner.Run(context.Background(), ports.Cmd("apt-get", "install", "-y", "jq"))
	_, _ = runner.Run(context.Background(), ports.Cmd("apt-get", "install", "-y", "curl"))

	calls := runner.Calls()
	if len(calls) != 2 {
		t.Fatalf("Calls() len = %d, want 2", len(calls))
	}
	if calls[0].Command != "apt-get" {
		t.Errorf("calls[0].Command = %q, want %q", calls[0].Command, "apt-get")
	}
	if !runner.Called("apt-get", "install", "-y", "curl") {
		t.Error("Called() = false for a recorded call")
	}
	if runner.Called("apt-get", "install") {
		t.Error("Called() matches exact arguments only")
	}
	lines := runner.CommandLines()
	if lines[0] != "apt-get install -y jq" {
		t.Errorf("CommandLines()[0] = %q", lines[0])
	}
}

func TestCommandRunner_Reset(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddResult("helm", []string{"version"}, ports.CommandResult{})
	_, _ = runner.Run(context.Background(), ports.Cmd("helm", "version"))

	runner.Reset()

	if len(runner.Calls()) != 0 {
		t.Error("Reset() should clear calls")
	}
	if _, err := runner.Run(context.Background(), ports.Cmd("helm", "version")); err == nil {
		t.Error("Reset() should clear results")
	}
}

func TestCommandRunner_ConcurrentAccess(t *testing.T) {
	runner := NewCommandRunner()
	runner.SetFallback(ports.CommandResult{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = runner.Run(context.Background(), ports.Cmd("echo", "hi"))
		}()
	}
	wg.Wait()

	if got := runner.CallCount("echo", "hi"); got != 50 {
		t.Errorf("CallCount() = %d, want 50", got)
	}
}

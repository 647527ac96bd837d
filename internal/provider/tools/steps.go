package tools

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/commandutil"
	"github.com/felixgeelhaar/edgeprov/internal/provider/versionutil"
)

// ToolStep installs a binary tool by script when its version probe fails.
type ToolStep struct {
	tool   Tool
	id     compiler.StepID
	deps   []compiler.StepID
	runner ports.CommandRunner
}

// NewToolStep creates a new ToolStep.
func NewToolStep(tool Tool, runner ports.CommandRunner, deps ...compiler.StepID) *ToolStep {
	return &ToolStep{
		tool:   tool,
		id:     compiler.MustNewStepID("tools:" + tool.Name),
		deps:   deps,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *ToolStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *ToolStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the tool is installed at an acceptable version.
func (s *ToolStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	_, ok, err := s.probe(ctx.Context())
	if err != nil {
		return compiler.Unknown, err
	}
	if !ok {
		return compiler.NotSatisfied, nil
	}
	return compiler.Satisfied, nil
}

// Plan returns the diff for this step.
func (s *ToolStep) Plan(ctx compiler.RunContext) (compiler.Diff, error) {
	version, ok, err := s.probe(ctx.Context())
	if err != nil {
		return compiler.Diff{}, err
	}
	if version != "" && !ok {
		return compiler.NewDiff(compiler.DiffTypeModify, "tool", s.tool.Name, version, ">= "+s.tool.MinVersion), nil
	}
	return compiler.NewDiff(compiler.DiffTypeAdd, "tool", s.tool.Name, "", s.tool.MinVersion), nil
}

// Apply runs the install script.
func (s *ToolStep) Apply(ctx compiler.RunContext) error {
	if _, err := commandutil.Run(ctx.Context(), s.runner, ports.Shell(s.tool.Install)); err != nil {
		return fmt.Errorf("install %s: %w", s.tool.Name, err)
	}
	return nil
}

// Verify confirms the installed binary answers its version probe.
func (s *ToolStep) Verify(ctx compiler.RunContext) error {
	version, ok, err := s.probe(ctx.Context())
	if err != nil {
		return err
	}
	if !ok {
		if version == "" {
			return fmt.Errorf("%s is not on PATH after install", s.tool.Name)
		}
		return fmt.Errorf("%s %s is older than %s", s.tool.Name, version, s.tool.MinVersion)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ToolStep) Explain() compiler.Explanation {
	detail := fmt.Sprintf("Installs %s with its upstream install script when it is not on PATH.", s.tool.Name)
	if s.tool.MinVersion != "" {
		detail = fmt.Sprintf("Installs %s with its upstream install script unless %s or newer is on PATH.", s.tool.Name, s.tool.MinVersion)
	}
	var links []string
	if s.tool.DocLink != "" {
		links = []string{s.tool.DocLink}
	}
	return compiler.NewExplanation("Install "+s.tool.Name, detail, links)
}

// probe returns the reported version and whether it is acceptable.
func (s *ToolStep) probe(ctx context.Context) (string, bool, error) {
	cmd := ports.Cmd(s.tool.VersionCmd[0], s.tool.VersionCmd[1:]...)
	result, ok, err := commandutil.Probe(ctx, s.runner, cmd)
	if err != nil || !ok {
		return "", false, err
	}
	version := versionutil.Extract(result.Stdout)
	if s.tool.MinVersion == "" {
		return version, true, nil
	}
	return version, versionutil.AtLeast(version, s.tool.MinVersion), nil
}

// SSHServiceStep enables and starts the OpenSSH server.
type SSHServiceStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewSSHServiceStep creates a new SSHServiceStep.
func NewSSHServiceStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *SSHServiceStep {
	return &SSHServiceStep{
		id:     compiler.MustNewStepID("tools:ssh-service"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *SSHServiceStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *SSHServiceStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the service is enabled and running.
func (s *SSHServiceStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	_, enabled, err := commandutil.Probe(ctx.Context(), s.runner, ports.Cmd("systemctl", "is-enabled", SSHServiceName))
	if err != nil {
		return compiler.Unknown, err
	}
	active, err := s.active(ctx.Context())
	if err != nil {
		return compiler.Unknown, err
	}
	if enabled && active {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *SSHServiceStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeModify, "service", SSHServiceName, "", "enabled"), nil
}

// Apply enables the service and starts it.
func (s *SSHServiceStep) Apply(ctx compiler.RunContext) error {
	if _, err := commandutil.Run(ctx.Context(), s.runner, ports.Cmd("systemctl", "enable", "--now", SSHServiceName)); err != nil {
		return fmt.Errorf("enable %s: %w", SSHServiceName, err)
	}
	return nil
}

// Verify waits for the service to report active.
func (s *SSHServiceStep) Verify(ctx compiler.RunContext) error {
	return compiler.Poll(ctx.Context(), compiler.PollOptions{
		Interval: s.cfg.PollInterval,
		Timeout:  s.cfg.VerifyTimeout,
		Clock:    ctx.Clock(),
	}, s.active)
}

// Explain provides a human-readable explanation.
func (s *SSHServiceStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Enable SSH service",
		"Enables the OpenSSH server at boot and starts it now.",
		nil,
	)
}

func (s *SSHServiceStep) active(ctx context.Context) (bool, error) {
	_, ok, err := commandutil.Probe(ctx, s.runner, ports.Cmd("systemctl", "is-active", SSHServiceName))
	return ok, err
}

// SSHIdentityStep records the SHA256 fingerprint of the host key as the
// node identity artifact.
type SSHIdentityStep struct {
	id   compiler.StepID
	deps []compiler.StepID
	fs   ports.FileSystem
}

// NewSSHIdentityStep creates a new SSHIdentityStep.
func NewSSHIdentityStep(fs ports.FileSystem, deps ...compiler.StepID) *SSHIdentityStep {
	return &SSHIdentityStep{
		id:   compiler.MustNewStepID("tools:ssh-identity"),
		deps: deps,
		fs:   fs,
	}
}

// ID returns the step identifier.
func (s *SSHIdentityStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *SSHIdentityStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the recorded identity matches the current host key.
func (s *SSHIdentityStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	if !s.fs.Exists(HostKeyPath) {
		return compiler.NotSatisfied, nil
	}
	fingerprint, err := s.fingerprint()
	if err != nil {
		return compiler.Unknown, err
	}
	if recorded, ok := ctx.Artifacts().Get(compiler.ArtifactNodeIdentity); ok && recorded == fingerprint {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *SSHIdentityStep) Plan(ctx compiler.RunContext) (compiler.Diff, error) {
	old, _ := ctx.Artifacts().Get(compiler.ArtifactNodeIdentity)
	if old == "" {
		return compiler.NewDiff(compiler.DiffTypeAdd, "artifact", compiler.ArtifactNodeIdentity, "", HostKeyPath), nil
	}
	return compiler.NewDiff(compiler.DiffTypeModify, "artifact", compiler.ArtifactNodeIdentity, old, ""), nil
}

// Apply computes and publishes the fingerprint.
func (s *SSHIdentityStep) Apply(ctx compiler.RunContext) error {
	fingerprint, err := s.fingerprint()
	if err != nil {
		return err
	}
	ctx.Artifacts().Publish(compiler.ArtifactNodeIdentity, fingerprint)
	return nil
}

// Verify checks that the identity was published.
func (s *SSHIdentityStep) Verify(ctx compiler.RunContext) error {
	if !ctx.Artifacts().Has(compiler.ArtifactNodeIdentity) {
		return fmt.Errorf("artifact %s was not published", compiler.ArtifactNodeIdentity)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *SSHIdentityStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Record node identity",
		fmt.Sprintf("Derives the %s artifact from the SHA256 fingerprint of %s.", compiler.ArtifactNodeIdentity, HostKeyPath),
		nil,
	)
}

func (s *SSHIdentityStep) fingerprint() (string, error) {
	data, err := s.fs.ReadFile(HostKeyPath)
	if err != nil {
		return "", fmt.Errorf("read host key: %w", err)
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return "", fmt.Errorf("parse host key %s: %w", HostKeyPath, err)
	}
	return ssh.FingerprintSHA256(key), nil
}

// Ensure steps implement compiler.Step.
var (
	_ compiler.Step = (*ToolStep)(nil)
	_ compiler.Step = (*SSHServiceStep)(nil)
	_ compiler.Step = (*SSHIdentityStep)(nil)
)

package host

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/commandutil"
	"github.com/felixgeelhaar/edgeprov/internal/validation"
)

// OSReleasePath is where the distribution identifies itself.
const OSReleasePath = "/etc/os-release"

// SupportedDistributions are the os-release IDs the installer targets.
// Derivatives are accepted through ID_LIKE.
var SupportedDistributions = []string{"ubuntu", "debian"}

// RequiredCommands must be on PATH before anything is installed.
var RequiredCommands = []string{"sh", "apt-get", "dpkg-query", "systemctl"}

// OSRelease is the subset of /etc/os-release the check reads.
type OSRelease struct {
	ID        string
	IDLike    []string
	VersionID string
	Pretty    string
}

// ParseOSRelease reads an os-release document.
func ParseOSRelease(data []byte) (OSRelease, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return OSRelease{}, fmt.Errorf("parse os-release: %w", err)
	}
	sec := f.Section(ini.DefaultSection)
	value := func(key string) string {
		return strings.Trim(sec.Key(key).String(), `"'`)
	}
	rel := OSRelease{
		ID:        strings.ToLower(value("ID")),
		IDLike:    strings.Fields(strings.ToLower(value("ID_LIKE"))),
		VersionID: value("VERSION_ID"),
		Pretty:    value("PRETTY_NAME"),
	}
	if rel.ID == "" {
		return OSRelease{}, fmt.Errorf("parse os-release: no ID field")
	}
	return rel, nil
}

// Supported reports whether the distribution is one the installer targets.
func (r OSRelease) Supported() bool {
	for _, want := range SupportedDistributions {
		if r.ID == want {
			return true
		}
		for _, like := range r.IDLike {
			if like == want {
				return true
			}
		}
	}
	return false
}

// String returns the pretty name, or ID and version when it is missing.
func (r OSRelease) String() string {
	if r.Pretty != "" {
		return r.Pretty
	}
	return strings.TrimSpace(r.ID + " " + r.VersionID)
}

// OSCheckStep gates the run on a supported distribution with the base
// tooling present. It changes nothing; Apply fails with the reason.
type OSCheckStep struct {
	id     compiler.StepID
	fs     ports.FileSystem
	runner ports.CommandRunner
}

// NewOSCheckStep creates a new OSCheckStep.
func NewOSCheckStep(fs ports.FileSystem, runner ports.CommandRunner) *OSCheckStep {
	return &OSCheckStep{
		id:     compiler.MustNewStepID("host:os-check"),
		fs:     fs,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *OSCheckStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *OSCheckStep) DependsOn() []compiler.StepID {
	return nil
}

// Check determines if the host is supported.
func (s *OSCheckStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	problem, err := s.inspect(ctx)
	if err != nil {
		return compiler.Unknown, err
	}
	if problem != "" {
		return compiler.NotSatisfied, nil
	}
	return compiler.Satisfied, nil
}

// Plan returns the diff for this step.
func (s *OSCheckStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeModify, "host", "os-check", "", ""), nil
}

// Apply reports why the host is not usable.
func (s *OSCheckStep) Apply(ctx compiler.RunContext) error {
	problem, err := s.inspect(ctx)
	if err != nil {
		return err
	}
	if problem != "" {
		return fmt.Errorf("unsupported host: %s", problem)
	}
	return nil
}

// Verify has nothing to confirm; Apply only succeeds on a usable host.
func (s *OSCheckStep) Verify(_ compiler.RunContext) error {
	return nil
}

// Explain provides a human-readable explanation.
func (s *OSCheckStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Check host operating system",
		fmt.Sprintf("Reads %s and requires one of %s (or a derivative) with %s on PATH.",
			OSReleasePath, strings.Join(SupportedDistributions, ", "), strings.Join(RequiredCommands, ", ")),
		nil,
	)
}

// inspect returns a description of the first problem found, or "".
func (s *OSCheckStep) inspect(ctx compiler.RunContext) (string, error) {
	data, err := s.fs.ReadFile(OSReleasePath)
	if err != nil {
		return fmt.Sprintf("cannot read %s: %v", OSReleasePath, err), nil
	}
	rel, err := ParseOSRelease(data)
	if err != nil {
		return err.Error(), nil
	}
	if !rel.Supported() {
		return fmt.Sprintf("%s is not supported (want %s)", rel, strings.Join(SupportedDistributions, " or ")), nil
	}

	missing, err := commandutil.MissingCommands(ctx.Context(), s.runner, RequiredCommands...)
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing commands: %s", strings.Join(missing, ", ")), nil
	}
	return "", nil
}

// SystemUpdateStep refreshes the package index and upgrades the host.
type SystemUpdateStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	runner ports.CommandRunner
}

// NewSystemUpdateStep creates a new SystemUpdateStep.
func NewSystemUpdateStep(runner ports.CommandRunner, deps ...compiler.StepID) *SystemUpdateStep {
	return &SystemUpdateStep{
		id:     compiler.MustNewStepID("host:system-update"),
		deps:   deps,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *SystemUpdateStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *SystemUpdateStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check always asks for an update; once it has converged the pipeline skips
// it on later runs.
func (s *SystemUpdateStep) Check(_ compiler.RunContext) (compiler.Precondition, error) {
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *SystemUpdateStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeModify, "system", "apt packages", "", "upgraded"), nil
}

// Apply executes apt-get update and upgrade.
func (s *SystemUpdateStep) Apply(ctx compiler.RunContext) error {
	for _, cmd := range []ports.Command{
		ports.Cmd("apt-get", "update").WithEnv(commandutil.AptEnv),
		ports.Cmd("apt-get", "-y", "upgrade").WithEnv(commandutil.AptEnv),
	} {
		if _, err := commandutil.Run(ctx.Context(), s.runner, cmd); err != nil {
			return fmt.Errorf("system update: %w", err)
		}
	}
	return nil
}

// Verify checks that dpkg reports no half-configured packages.
func (s *SystemUpdateStep) Verify(ctx compiler.RunContext) error {
	result, err := commandutil.Run(ctx.Context(), s.runner, ports.Cmd("dpkg", "--audit"))
	if err != nil {
		return err
	}
	if out := result.Output(); out != "" {
		return fmt.Errorf("dpkg reports broken packages: %s", out)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *SystemUpdateStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Update system packages",
		"Runs apt-get update and apt-get upgrade non-interactively. Disable with deployment.skip_system_update.",
		nil,
	)
}

// PackageStep represents an apt package installation step.
type PackageStep struct {
	pkg    string
	id     compiler.StepID
	deps   []compiler.StepID
	runner ports.CommandRunner
}

// NewPackageStep creates a new PackageStep.
func NewPackageStep(pkg string, runner ports.CommandRunner, deps ...compiler.StepID) *PackageStep {
	return &PackageStep{
		pkg:    pkg,
		id:     compiler.MustNewStepID("host:package:" + pkg),
		deps:   deps,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *PackageStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *PackageStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the package is already installed.
func (s *PackageStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	installed, err := s.installed(ctx)
	if err != nil {
		return compiler.Unknown, err
	}
	if installed {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *PackageStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeAdd, "package", s.pkg, "", ""), nil
}

// Apply executes the package installation.
func (s *PackageStep) Apply(ctx compiler.RunContext) error {
	// Validate package name before execution to prevent command injection
	if err := validation.ValidatePackageName(s.pkg); err != nil {
		return fmt.Errorf("invalid package name: %w", err)
	}

	cmd := ports.Cmd("apt-get", "install", "-y", "--no-install-recommends", s.pkg).WithEnv(commandutil.AptEnv)
	if _, err := commandutil.Run(ctx.Context(), s.runner, cmd); err != nil {
		return fmt.Errorf("install %s: %w", s.pkg, err)
	}
	return nil
}

// Verify confirms dpkg now reports the package installed.
func (s *PackageStep) Verify(ctx compiler.RunContext) error {
	installed, err := s.installed(ctx)
	if err != nil {
		return err
	}
	if !installed {
		return fmt.Errorf("package %s is not installed after apt-get install", s.pkg)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *PackageStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Install APT package",
		fmt.Sprintf("Installs %s with apt-get when dpkg does not already report it installed.", s.pkg),
		nil,
	)
}

func (s *PackageStep) installed(ctx compiler.RunContext) (bool, error) {
	result, ok, err := commandutil.Probe(ctx.Context(), s.runner,
		ports.Cmd("dpkg-query", "-W", "-f=${db:Status-Status}", s.pkg))
	if err != nil {
		return false, err
	}
	// dpkg-query exits 1 for packages it has never seen
	return ok && result.Output() == "installed", nil
}

package host_test

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/host"
	"github.com/felixgeelhaar/edgeprov/internal/testutil/mocks"
)

const ubuntuRelease = `PRETTY_NAME="Ubuntu 22.04.4 LTS"
NAME="Ubuntu"
VERSION_ID="22.04"
ID=ubuntu
ID_LIKE=debian
HOME_URL="https://www.ubuntu.com/"
`

func runCtx() compiler.RunContext {
	return compiler.NewRunContext(context.Background())
}

func withCommands(runner *mocks.CommandRunner, names ...string) {
	for _, name := range names {
		runner.AddResult("which", []string{name}, ports.CommandResult{Stdout: "/usr/bin/" + name})
	}
}

func TestParseOSRelease(t *testing.T) {
	t.Parallel()

	rel, err := host.ParseOSRelease([]byte(ubuntuRelease))

	require.NoError(t, err)
	assert.Equal(t, "ubuntu", rel.ID)
	assert.Equal(t, []string{"debian"}, rel.IDLike)
	assert.Equal(t, "22.04", rel.VersionID)
	assert.Equal(t, "Ubuntu 22.04.4 LTS", rel.String())
	assert.True(t, rel.Supported())
}

func TestParseOSRelease_Derivative(t *testing.T) {
	t.Parallel()

	rel, err := host.ParseOSRelease([]byte("ID=raspbian\nID_LIKE=\"debian\"\nVERSION_ID=\"12\"\n"))

	require.NoError(t, err)
	assert.True(t, rel.Supported())
	assert.Equal(t, "raspbian 12", rel.String())
}

func TestParseOSRelease_MissingID(t *testing.T) {
	t.Parallel()

	_, err := host.ParseOSRelease([]byte("NAME=Nameless\n"))
	assert.Error(t, err)
}

func TestOSCheckStep_Satisfied(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile(host.OSReleasePath, ubuntuRelease)
	runner := mocks.NewCommandRunner()
	withCommands(runner, host.RequiredCommands...)

	step := host.NewOSCheckStep(fs, runner)
	status, err := step.Check(runCtx())

	require.NoError(t, err)
	assert.Equal(t, compiler.Satisfied, status)
	require.NoError(t, step.Apply(runCtx()))
}

func TestOSCheckStep_UnsupportedDistribution(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile(host.OSReleasePath, "ID=fedora\nVERSION_ID=40\nPRETTY_NAME=\"Fedora Linux 40\"\n")
	runner := mocks.NewCommandRunner()

	step := host.NewOSCheckStep(fs, runner)
	status, err := step.Check(runCtx())

	require.NoError(t, err)
	assert.Equal(t, compiler.NotSatisfied, status)

	err = step.Apply(runCtx())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fedora Linux 40 is not supported")
	assert.Empty(t, runner.Calls())
}

func TestOSCheckStep_MissingCommands(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile(host.OSReleasePath, ubuntuRelease)
	runner := mocks.NewCommandRunner()
	withCommands(runner, "sh", "apt-get", "dpkg-query")
	runner.AddError("which", []string{"systemctl"}, exec.ErrNotFound)

	err := host.NewOSCheckStep(fs, runner).Apply(runCtx())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing commands: systemctl")
}

func TestOSCheckStep_MissingReleaseFile(t *testing.T) {
	t.Parallel()

	step := host.NewOSCheckStep(mocks.NewFileSystem(), mocks.NewCommandRunner())

	status, err := step.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, compiler.NotSatisfied, status)
	assert.Contains(t, step.Explain().Detail(), host.OSReleasePath)
}

func TestSystemUpdateStep_Apply(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"update"}, ports.CommandResult{})
	runner.AddResult("apt-get", []string{"-y", "upgrade"}, ports.CommandResult{})
	runner.AddResult("dpkg", []string{"--audit"}, ports.CommandResult{})

	step := host.NewSystemUpdateStep(runner, compiler.MustNewStepID("host:os-check"))

	status, err := step.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, compiler.NotSatisfied, status)

	require.NoError(t, step.Apply(runCtx()))
	require.NoError(t, step.Verify(runCtx()))
	assert.Equal(t, []string{"apt-get update", "apt-get -y upgrade", "dpkg --audit"}, runner.CommandLines())
}

func TestSystemUpdateStep_UpdateFailureStopsUpgrade(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"update"}, ports.CommandResult{ExitCode: 100, Stderr: "Temporary failure resolving 'archive.ubuntu.com'"})

	err := host.NewSystemUpdateStep(runner).Apply(runCtx())

	require.Error(t, err)
	assert.Equal(t, "Temporary failure resolving 'archive.ubuntu.com'", compiler.TailOf(err))
	assert.False(t, runner.Called("apt-get", "-y", "upgrade"))
}

func TestSystemUpdateStep_VerifyReportsBrokenPackages(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("dpkg", []string{"--audit"}, ports.CommandResult{Stdout: "The following packages are only half configured"})

	err := host.NewSystemUpdateStep(runner).Verify(runCtx())
	assert.ErrorContains(t, err, "half configured")
}

func dpkgQuery(pkg string) []string {
	return []string{"-W", "-f=${db:Status-Status}", pkg}
}

func TestPackageStep_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result ports.CommandResult
		want   compiler.Precondition
	}{
		{"installed", ports.CommandResult{Stdout: "installed"}, compiler.Satisfied},
		{"config-files only", ports.CommandResult{Stdout: "config-files"}, compiler.NotSatisfied},
		{"unknown package", ports.CommandResult{ExitCode: 1, Stderr: "dpkg-query: no packages found matching jq"}, compiler.NotSatisfied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := mocks.NewCommandRunner()
			runner.AddResult("dpkg-query", dpkgQuery("jq"), tt.result)

			status, err := host.NewPackageStep("jq", runner).Check(runCtx())

			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestPackageStep_ApplyAndVerify(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"install", "-y", "--no-install-recommends", "jq"}, ports.CommandResult{})
	runner.AddResult("dpkg-query", dpkgQuery("jq"), ports.CommandResult{Stdout: "installed"})

	step := host.NewPackageStep("jq", runner, compiler.MustNewStepID("host:system-update"))

	assert.Equal(t, "host:package:jq", step.ID().String())
	assert.Equal(t, []compiler.StepID{compiler.MustNewStepID("host:system-update")}, step.DependsOn())
	require.NoError(t, step.Apply(runCtx()))
	require.NoError(t, step.Verify(runCtx()))

	diff, err := step.Plan(runCtx())
	require.NoError(t, err)
	assert.Equal(t, "+ package jq", diff.Summary())
}

func TestPackageStep_ApplyFailure(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"install", "-y", "--no-install-recommends", "jq"}, ports.CommandResult{
		ExitCode: 100,
		Stderr:   "E: Unable to locate package jq",
	})

	err := host.NewPackageStep("jq", runner).Apply(runCtx())

	require.Error(t, err)
	var cmdErr *ports.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 100, cmdErr.Result.ExitCode)
	assert.Equal(t, "E: Unable to locate package jq", compiler.TailOf(err))
}

func TestPackageStep_ApplyRejectsInvalidName(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	err := host.NewPackageStep("bad_name", runner).Apply(runCtx())

	require.Error(t, err)
	assert.Empty(t, runner.Calls())
}

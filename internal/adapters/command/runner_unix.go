//go:build !windows

package command

import (
	"os/exec"
	"syscall"
)

// configureProcess places the child in its own process group so a timeout
// kills everything a "sh -c" pipeline started, not just the shell.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

//go:build windows

package command

import "os/exec"

// configureProcess keeps the exec default of killing the direct child.
func configureProcess(_ *exec.Cmd) {}

//go:build windows

package commands

import (
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	createNewConsole      = 0x00000010
)

// detach gives the child its own console and process group, matching
// "start cmd /c ..." from an interactive shell.
func detach(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewConsole | createNewProcessGroup,
	}
}

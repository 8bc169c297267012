//go:build unix

package commands

import (
	"os/exec"
	"syscall"
)

// detach moves the child into its own session so signals sent to vigil's
// process group do not reach it.
func detach(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

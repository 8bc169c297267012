package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
)

// waitDelay bounds how long Run waits for output pipes after the process
// exits; stop scripts often leave children holding them open.
const waitDelay = 5 * time.Second

// ErrNoCommand is returned for a command with no program.
var ErrNoCommand = errors.New("empty command")

// ExecRunner runs commands on the host with os/exec. No shell is involved.
type ExecRunner struct {
	logger arbor.ILogger
}

// NewExecRunner creates a host command runner
func NewExecRunner(logger arbor.ILogger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Describe renders a command for logs and outcomes.
func Describe(cmd interfaces.Command) string {
	return strings.Join(cmd.Args, " ")
}

// Run executes cmd and waits for it. A non-zero exit is not an error.
func (r *ExecRunner) Run(ctx context.Context, cmd interfaces.Command) (interfaces.CommandResult, error) {
	result := interfaces.CommandResult{ExitCode: -1}
	if len(cmd.Args) == 0 || cmd.Args[0] == "" {
		return result, ErrNoCommand
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	r.logger.Debug().Str("command", Describe(cmd)).Str("dir", cmd.Dir).Msg("Running command")

	start := time.Now()
	err := c.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("command %q did not finish: %w", Describe(cmd), ctxErr)
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return result, fmt.Errorf("failed to run %q: %w", Describe(cmd), err)
	}

	r.logger.Debug().
		Str("command", Describe(cmd)).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("Command finished")

	return result, nil
}

// Start spawns cmd detached from vigil and returns its pid. The process is
// not tied to ctx and keeps running after vigil exits; a background goroutine
// reaps it.
func (r *ExecRunner) Start(ctx context.Context, cmd interfaces.Command) (int, error) {
	if len(cmd.Args) == 0 || cmd.Args[0] == "" {
		return 0, ErrNoCommand
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	detach(c)

	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %q: %w", Describe(cmd), err)
	}

	pid := c.Process.Pid
	desc := Describe(cmd)
	common.SafeGo(r.logger, "reap "+desc, func() {
		if err := c.Wait(); err != nil {
			r.logger.Warn().Err(err).Str("command", desc).Int("pid", pid).Msg("Detached process exited with error")
			return
		}
		r.logger.Debug().Str("command", desc).Int("pid", pid).Msg("Detached process exited")
	})

	r.logger.Debug().Str("command", desc).Int("pid", pid).Msg("Detached process started")
	return pid, nil
}

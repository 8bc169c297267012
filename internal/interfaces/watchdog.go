package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// Command is an external command invocation. Args[0] is the program; no shell
// is involved.
type Command struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// CommandResult is the observable contract of a finished command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandRunner executes external commands.
type CommandRunner interface {
	// Run executes cmd and waits for it to exit. A non-zero exit is reported
	// through CommandResult.ExitCode, not as an error; errors mean the command
	// could not be run or did not finish within its timeout.
	Run(ctx context.Context, cmd Command) (CommandResult, error)

	// Start spawns cmd without waiting for it and returns its process id.
	Start(ctx context.Context, cmd Command) (int, error)
}

// EventSource produces the current event window of a log file.
type EventSource interface {
	Events(ctx context.Context, now time.Time) ([]models.LogEvent, error)
}

// LivenessProber answers point-in-time liveness questions. Probe failures are
// reported as not live, never as errors.
type LivenessProber interface {
	Probe(ctx context.Context, target models.ServiceTarget) models.ProbeResult
}

// ActionExecutor issues corrective actions. Failures are returned as outcomes.
type ActionExecutor interface {
	RestartServer(ctx context.Context) models.ActionOutcome
	StartService(ctx context.Context, name string) models.ActionOutcome
}

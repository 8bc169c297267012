package commands

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
)

// DryRunRunner logs commands instead of executing them and reports success.
type DryRunRunner struct {
	logger arbor.ILogger
}

func NewDryRunRunner(logger arbor.ILogger) *DryRunRunner {
	return &DryRunRunner{logger: logger}
}

func (r *DryRunRunner) Run(ctx context.Context, cmd interfaces.Command) (interfaces.CommandResult, error) {
	if len(cmd.Args) == 0 || cmd.Args[0] == "" {
		return interfaces.CommandResult{ExitCode: -1}, ErrNoCommand
	}
	r.logger.Info().Str("command", Describe(cmd)).Str("dir", cmd.Dir).Msg("[dry-run] would run command")
	return interfaces.CommandResult{ExitCode: 0}, nil
}

func (r *DryRunRunner) Start(ctx context.Context, cmd interfaces.Command) (int, error) {
	if len(cmd.Args) == 0 || cmd.Args[0] == "" {
		return 0, ErrNoCommand
	}
	r.logger.Info().Str("command", Describe(cmd)).Str("dir", cmd.Dir).Msg("[dry-run] would start detached process")
	return 0, nil
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/commands"
	"github.com/ternarybob/vigil/internal/services/scheduler"
)

const maxCapturedOutput = 8 * 1024

// ErrRateLimited is recorded on restarts suppressed by MaxRestartsPerHour.
var ErrRateLimited = errors.New("restart rate limit exceeded")

// Config describes the corrective commands.
type Config struct {
	CoreName           string
	WorkDir            string
	StopCommand        []string
	StartCommand       []string
	StopTimeout        time.Duration
	SettleDelay        time.Duration
	MaxRestartsPerHour int // 0 disables the limit

	ServiceStartCommand []string // unit name is appended
	ServiceTimeout      time.Duration
}

// Service implements interfaces.ActionExecutor. Failures, including panics,
// come back as failed outcomes.
type Service struct {
	cfg     Config
	runner  interfaces.CommandRunner
	clock   scheduler.Clock
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewService creates an executor that runs commands through runner.
func NewService(logger arbor.ILogger, cfg Config, runner interfaces.CommandRunner, clock scheduler.Clock) *Service {
	if clock == nil {
		clock = scheduler.RealClock{}
	}

	var limiter *rate.Limiter
	if cfg.MaxRestartsPerHour > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(cfg.MaxRestartsPerHour)), cfg.MaxRestartsPerHour)
	}

	return &Service{
		cfg:     cfg,
		runner:  runner,
		clock:   clock,
		limiter: limiter,
		logger:  logger,
	}
}

func (s *Service) newOutcome(action models.ActionType, target string) models.ActionOutcome {
	return models.ActionOutcome{
		ID:        common.NewOutcomeID(),
		Action:    action,
		Target:    target,
		StartedAt: s.clock.Now(),
	}
}

// finish recovers a panic into the outcome and logs the result.
func (s *Service) finish(outcome *models.ActionOutcome) {
	if r := recover(); r != nil {
		outcome.Fail(fmt.Errorf("panic during %s: %v", outcome.Action, r))
	}
	outcome.Duration = s.clock.Now().Sub(outcome.StartedAt)

	if outcome.Succeeded {
		s.logger.Info().
			Str("action", string(outcome.Action)).
			Str("target", outcome.Target).
			Dur("duration", outcome.Duration).
			Msg("Corrective action succeeded")
		return
	}
	s.logger.Error().
		Str("action", string(outcome.Action)).
		Str("target", outcome.Target).
		Int("exit_code", outcome.ExitCode).
		Str("error", outcome.Error).
		Str("stderr", outcome.Stderr).
		Msg("Corrective action failed")
}

// RestartServer stops the core server, waits for the stop command to exit,
// settles and then starts the server detached. A failed stop aborts the
// restart before anything is started.
func (s *Service) RestartServer(ctx context.Context) (outcome models.ActionOutcome) {
	outcome = s.newOutcome(models.ActionRestartServer, s.cfg.CoreName)
	defer s.finish(&outcome)

	if s.limiter != nil && !s.limiter.AllowN(s.clock.Now(), 1) {
		outcome.Step("suppressed by restart rate limit")
		outcome.Fail(ErrRateLimited)
		return outcome
	}

	stop := interfaces.Command{Args: s.cfg.StopCommand, Dir: s.cfg.WorkDir, Timeout: s.cfg.StopTimeout}
	outcome.Step("stop: " + commands.Describe(stop))
	s.logger.Info().Str("command", commands.Describe(stop)).Str("dir", stop.Dir).Msg("Stopping core server")

	result, err := s.runner.Run(ctx, stop)
	outcome.ExitCode = result.ExitCode
	outcome.Stdout = truncate(result.Stdout)
	outcome.Stderr = truncate(result.Stderr)
	if err != nil {
		outcome.Fail(fmt.Errorf("stop command failed: %w", err))
		return outcome
	}
	s.logger.Info().Int("exit_code", result.ExitCode).Str("stdout", outcome.Stdout).Msg("Stop command finished")
	if result.ExitCode != 0 {
		outcome.Fail(fmt.Errorf("stop command exited with code %d", result.ExitCode))
		return outcome
	}

	if s.cfg.SettleDelay > 0 {
		outcome.Step(fmt.Sprintf("settle %s", s.cfg.SettleDelay))
		if err := scheduler.Sleep(ctx, s.clock, s.cfg.SettleDelay); err != nil {
			outcome.Fail(fmt.Errorf("settle delay interrupted: %w", err))
			return outcome
		}
	}

	start := interfaces.Command{Args: s.cfg.StartCommand, Dir: s.cfg.WorkDir}
	s.logger.Info().Str("command", commands.Describe(start)).Str("dir", start.Dir).Msg("Starting core server")

	pid, err := s.runner.Start(ctx, start)
	if err != nil {
		outcome.Step("start: " + commands.Describe(start))
		outcome.Fail(fmt.Errorf("start command failed: %w", err))
		return outcome
	}
	outcome.Step(fmt.Sprintf("start: %s (pid %d)", commands.Describe(start), pid))
	outcome.Succeeded = true
	return outcome
}

// StartService starts the named OS service and waits for the start command.
func (s *Service) StartService(ctx context.Context, name string) (outcome models.ActionOutcome) {
	outcome = s.newOutcome(models.ActionStartService, name)
	defer s.finish(&outcome)

	args := append(append([]string{}, s.cfg.ServiceStartCommand...), name)
	cmd := interfaces.Command{Args: args, Timeout: s.cfg.ServiceTimeout}
	outcome.Step("start: " + commands.Describe(cmd))
	s.logger.Info().Str("service", name).Str("command", commands.Describe(cmd)).Msg("Starting service")

	result, err := s.runner.Run(ctx, cmd)
	outcome.ExitCode = result.ExitCode
	outcome.Stdout = truncate(result.Stdout)
	outcome.Stderr = truncate(result.Stderr)
	if err != nil {
		outcome.Fail(fmt.Errorf("start command failed: %w", err))
		return outcome
	}
	if result.ExitCode != 0 {
		outcome.Fail(fmt.Errorf("start command exited with code %d", result.ExitCode))
		return outcome
	}

	outcome.Succeeded = true
	return outcome
}

func truncate(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	return s[:maxCapturedOutput] + "...(truncated)"
}

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/evaluator"
	"github.com/ternarybob/vigil/internal/services/history"
	"github.com/ternarybob/vigil/internal/services/scheduler"
)

// Config holds the monitor's targets and cadences.
type Config struct {
	CoreName     string
	CoreHost     string
	CorePort     int
	Targets      []models.ServiceTarget
	StartupGrace time.Duration // 0 disables
	LogCheck     string        // cron expression, log evaluation only
	Sweep        string        // cron expression, log evaluation + liveness sweep
}

// Service is the monitor loop. It is the only driver of the extractor,
// evaluator, prober and executor, and runs every step on one goroutine.
type Service struct {
	cfg       Config
	events    interfaces.EventSource
	evaluator *evaluator.Service
	prober    interfaces.LivenessProber
	executor  interfaces.ActionExecutor
	history   *history.Service        // optional
	state     interfaces.StateStorage // optional
	clock     scheduler.Clock
	logger    arbor.ILogger

	lastRestart  time.Time
	marker       *models.IncidentMarker
	markerLoaded bool
}

// NewService wires the monitor. history and state may be nil.
func NewService(
	logger arbor.ILogger,
	cfg Config,
	events interfaces.EventSource,
	eval *evaluator.Service,
	prober interfaces.LivenessProber,
	executor interfaces.ActionExecutor,
	hist *history.Service,
	state interfaces.StateStorage,
	clock scheduler.Clock,
) *Service {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	return &Service{
		cfg:       cfg,
		events:    events,
		evaluator: eval,
		prober:    prober,
		executor:  executor,
		history:   hist,
		state:     state,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs a full cycle immediately, then runs cycles on the log_check
// and sweep cadences until ctx is cancelled. It only returns an error when a
// cadence cannot be parsed.
func (s *Service) Run(ctx context.Context) error {
	now := s.clock.Now()
	logCheck, err := scheduler.NewCadence("log_check", s.cfg.LogCheck, now)
	if err != nil {
		return err
	}
	sweep, err := scheduler.NewCadence("sweep", s.cfg.Sweep, now)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("log_check", logCheck.Expr()).
		Str("sweep", sweep.Expr()).
		Str("core", fmt.Sprintf("%s:%d", s.cfg.CoreHost, s.cfg.CorePort)).
		Int("targets", len(s.cfg.Targets)).
		Msg("Monitor loop started")

	s.RunCycle(ctx, true)
	now = s.clock.Now()
	logCheck.Fired(now)
	sweep.Fired(now)

	for {
		if ctx.Err() != nil {
			break
		}

		wait := scheduler.Earliest(logCheck, sweep).Sub(s.clock.Now())
		if err := scheduler.Sleep(ctx, s.clock, wait); err != nil {
			break
		}

		now = s.clock.Now()
		runSweep := sweep.Due(now)
		if !runSweep && !logCheck.Due(now) {
			continue
		}

		s.RunCycle(ctx, runSweep)

		// a sweep includes the log check, so both re-arm after it
		now = s.clock.Now()
		logCheck.Fired(now)
		if runSweep {
			sweep.Fired(now)
		}
	}

	s.logger.Info().Msg("Monitor loop stopped")
	return nil
}

// cycle carries per-cycle state between steps.
type cycle struct {
	report    *models.CycleReport
	logger    arbor.ILogger
	restarted bool
}

type cycleStep struct {
	name string
	fn   func(context.Context, *cycle) error
}

// RunCycle runs one cycle: the log check, and with sweep also the core probe,
// the service sweep and history pruning. Cancellation is honoured between
// steps; a corrective action that has begun runs to completion.
func (s *Service) RunCycle(ctx context.Context, sweep bool) models.CycleReport {
	report := models.CycleReport{
		CycleID:   common.NewCycleID(),
		StartedAt: s.clock.Now(),
		Sweep:     sweep,
		Decision:  models.DecisionNoAction,
	}
	c := &cycle{report: &report, logger: s.logger.WithCorrelationId(report.CycleID)}

	c.logger.Debug().Bool("sweep", sweep).Msg("Cycle started")

	steps := []cycleStep{{"log_check", s.checkLog}}
	if sweep {
		steps = append(steps,
			cycleStep{"core_probe", s.checkCore},
			cycleStep{"service_sweep", s.sweepServices},
			cycleStep{"history_prune", s.pruneHistory},
		)
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			c.logger.Info().Str("step", step.name).Msg("Cycle interrupted by shutdown")
			break
		}
		err := common.SafeCall(c.logger, step.name, func() error { return step.fn(ctx, c) })
		if err != nil {
			c.logger.Warn().Err(err).Str("step", step.name).Msg("Cycle step failed")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", step.name, err))
		}
	}

	c.logger.Info().
		Bool("sweep", sweep).
		Int("events", report.Events).
		Str("decision", string(report.Decision)).
		Int("actions", len(report.Actions)).
		Int("errors", len(report.Errors)).
		Dur("duration", s.clock.Now().Sub(report.StartedAt)).
		Msg("Cycle complete")

	return report
}

// checkLog extracts the event window, evaluates it and restarts the core
// server for an incident that has not already been handled.
func (s *Service) checkLog(ctx context.Context, c *cycle) error {
	events, err := s.events.Events(ctx, s.clock.Now())
	c.report.Events = len(events)
	if err != nil {
		return fmt.Errorf("log evaluation skipped: %w", err)
	}

	var handled time.Time
	if marker := s.incidentMarker(ctx, c); marker != nil {
		handled = marker.TriggerAt
	}

	decision := s.evaluator.EvaluateAfter(events, handled)
	c.report.Decision = decision.Action
	if !decision.IsRestart() {
		if !handled.IsZero() && evaluator.Evaluate(events, s.evaluator.Rule()).IsRestart() {
			c.report.Suppressed = "log incident at or before " + handled.Format(time.RFC3339) + " already handled"
			c.logger.Info().
				Str("handled_trigger_at", handled.Format(time.RFC3339)).
				Msg("Log incident already handled, not restarting again")
		}
		return nil
	}

	reason := fmt.Sprintf("log incident: %s then %s within %s (line %d)",
		decision.Trigger.Kind, decision.Confirm.Kind, decision.Gap, decision.Confirm.Line)
	outcome := s.restart(ctx, c, reason)
	if outcome.Succeeded {
		s.saveIncidentMarker(ctx, c, &models.IncidentMarker{
			TriggerAt: decision.Trigger.Timestamp,
			HandledAt: s.clock.Now(),
			OutcomeID: outcome.ID,
		})
	}
	return nil
}

// checkCore probes the core server port and restarts it when unreachable,
// unless it was restarted this cycle or is still inside its startup grace.
func (s *Service) checkCore(ctx context.Context, c *cycle) error {
	target := models.ServiceTarget{
		Name:  s.cfg.CoreName,
		Probe: models.ProbePort,
		Host:  s.cfg.CoreHost,
		Port:  s.cfg.CorePort,
	}
	result := s.prober.Probe(ctx, target)
	if err := ctx.Err(); err != nil {
		return err
	}
	c.report.Probes = append(c.report.Probes, result)

	if result.Live {
		return nil
	}

	if c.restarted {
		c.logger.Info().Str("core", target.Address()).Msg("Core port not reachable; restart already issued this cycle")
		return nil
	}
	if s.inStartupGrace() {
		c.logger.Info().
			Str("core", target.Address()).
			Str("last_restart", s.lastRestart.Format(time.RFC3339)).
			Msg("Core port not reachable; within startup grace")
		return nil
	}

	c.logger.Warn().Str("core", target.Address()).Str("detail", result.Detail).Msg("Core port not reachable, restarting")
	s.restart(ctx, c, "core port not reachable: "+target.Address())
	return nil
}

func (s *Service) inStartupGrace() bool {
	if s.cfg.StartupGrace <= 0 || s.lastRestart.IsZero() {
		return false
	}
	return s.clock.Now().Sub(s.lastRestart) < s.cfg.StartupGrace
}

// sweepServices probes every target and starts the ones that are down.
func (s *Service) sweepServices(ctx context.Context, c *cycle) error {
	for _, target := range s.cfg.Targets {
		result := s.prober.Probe(ctx, target)
		if err := ctx.Err(); err != nil {
			return err
		}
		c.report.Probes = append(c.report.Probes, result)
		if result.Live {
			continue
		}

		c.logger.Warn().Str("target", target.Name).Str("detail", result.Detail).Msg("Service not running, starting")
		outcome := s.executor.StartService(context.WithoutCancel(ctx), target.UnitName())
		s.recordOutcome(ctx, c, &outcome, "service not running: "+result.Detail)
	}
	return nil
}

func (s *Service) pruneHistory(ctx context.Context, c *cycle) error {
	if s.history == nil {
		return nil
	}
	_, err := s.history.Prune(ctx, s.clock.Now())
	return err
}

// restart issues RestartServer outside of ctx cancellation and marks the
// cycle so no second restart is issued.
func (s *Service) restart(ctx context.Context, c *cycle, reason string) models.ActionOutcome {
	c.restarted = true
	outcome := s.executor.RestartServer(context.WithoutCancel(ctx))
	if outcome.Succeeded {
		s.lastRestart = s.clock.Now()
	}
	s.recordOutcome(ctx, c, &outcome, reason)
	return outcome
}

func (s *Service) recordOutcome(ctx context.Context, c *cycle, outcome *models.ActionOutcome, reason string) {
	if outcome.ID == "" {
		outcome.ID = common.NewOutcomeID()
	}
	outcome.CycleID = c.report.CycleID
	outcome.Reason = reason
	c.report.Actions = append(c.report.Actions, *outcome)

	if s.history != nil {
		_ = s.history.Record(context.WithoutCancel(ctx), outcome)
	}
}

func (s *Service) incidentMarker(ctx context.Context, c *cycle) *models.IncidentMarker {
	if s.markerLoaded || s.state == nil {
		return s.marker
	}
	marker, err := s.state.GetIncidentMarker(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load incident marker")
		return s.marker
	}
	s.marker = marker
	s.markerLoaded = true
	return s.marker
}

func (s *Service) saveIncidentMarker(ctx context.Context, c *cycle, marker *models.IncidentMarker) {
	s.marker = marker
	s.markerLoaded = true
	if s.state == nil {
		return
	}
	if err := s.state.SaveIncidentMarker(context.WithoutCancel(ctx), marker); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist incident marker")
	}
}

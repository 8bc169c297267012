package app

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/services/commands"
	"github.com/ternarybob/vigil/internal/services/evaluator"
	"github.com/ternarybob/vigil/internal/services/executor"
	"github.com/ternarybob/vigil/internal/services/history"
	"github.com/ternarybob/vigil/internal/services/logscan"
	"github.com/ternarybob/vigil/internal/services/monitor"
	"github.com/ternarybob/vigil/internal/services/prober"
	"github.com/ternarybob/vigil/internal/services/scheduler"
	"github.com/ternarybob/vigil/internal/storage/badger"
)

// Options adjust how the application is assembled.
type Options struct {
	// DryRun logs corrective commands instead of executing them. Probes and
	// state queries still run for real; history and watchdog state are read
	// but never written.
	DryRun bool
	// StorageOptional continues without the state database when it cannot be
	// opened, e.g. while another vigil process holds its lock.
	StorageOptional bool
}

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	Options        Options
	StorageManager interfaces.StorageManager
	Clock          scheduler.Clock

	Runner           interfaces.CommandRunner // state queries
	ActionRunner     interfaces.CommandRunner // corrective commands
	LogScanService   *logscan.Service
	EvaluatorService *evaluator.Service
	ProberService    *prober.Service
	ExecutorService  *executor.Service
	HistoryService   *history.Service
	MonitorService   *monitor.Service
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Options: opts,
		Clock:   scheduler.RealClock{},
	}

	if err := app.initDatabase(); err != nil {
		if !opts.StorageOptional {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Warn().Err(err).Msg("State database unavailable, continuing without history or incident marker")
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("log", cfg.LogScan.Path).
		Str("read_mode", cfg.LogScan.ReadMode).
		Str("core", fmt.Sprintf("%s:%d", cfg.Core.Host, cfg.Core.Port)).
		Int("targets", len(cfg.Services.Targets)).
		Bool("dry_run", opts.DryRun).
		Bool("history", app.HistoryService != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the badger state store
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the components leaves first.
func (a *App) initServices() error {
	cfg := a.Config
	var err error

	var state interfaces.StateStorage
	if a.StorageManager != nil {
		state = a.StorageManager.StateStorage()
		if cfg.History.Enabled {
			a.HistoryService = history.NewService(
				a.Logger,
				a.StorageManager.OutcomeStorage(),
				common.ParseDuration(cfg.History.Retention, 0),
			)
		}
	}

	// A dry run executes nothing, so it must not record outcomes or advance
	// the watchdog state as if it had.
	monitorHistory := a.HistoryService
	a.Runner = commands.NewExecRunner(a.Logger)
	a.ActionRunner = a.Runner
	if a.Options.DryRun {
		a.ActionRunner = commands.NewDryRunRunner(a.Logger)
		monitorHistory = nil
		if state != nil {
			state = readOnlyState{state}
		}
	}

	a.LogScanService, err = logscan.NewService(a.Logger, cfg.LogScan, state)
	if err != nil {
		return fmt.Errorf("failed to create log scan service: %w", err)
	}

	a.EvaluatorService = evaluator.NewService(a.Logger, cfg.CorrelationRule())

	a.ProberService = prober.NewService(a.Logger, prober.Config{
		DialTimeout:    common.ParseDuration(cfg.Core.ProbeTimeout, 3*time.Second),
		StateCommand:   cfg.Services.StateCommand,
		RunningMarker:  cfg.Services.RunningMarker,
		CommandTimeout: common.ParseDuration(cfg.Services.CommandTimeout, time.Minute),
	}, a.Runner)

	a.ExecutorService = executor.NewService(a.Logger, executor.Config{
		CoreName:            cfg.Core.Name,
		WorkDir:             cfg.Core.WorkDir,
		StopCommand:         cfg.Core.StopCommand,
		StartCommand:        cfg.Core.StartCommand,
		StopTimeout:         common.ParseDuration(cfg.Core.StopTimeout, 2*time.Minute),
		SettleDelay:         common.ParseDuration(cfg.Core.SettleDelay, 10*time.Second),
		MaxRestartsPerHour:  cfg.Core.MaxRestartsPerHour,
		ServiceStartCommand: cfg.Services.StartCommand,
		ServiceTimeout:      common.ParseDuration(cfg.Services.CommandTimeout, time.Minute),
	}, a.ActionRunner, a.Clock)

	a.MonitorService = monitor.NewService(
		a.Logger,
		monitor.Config{
			CoreName:     cfg.Core.Name,
			CoreHost:     cfg.Core.Host,
			CorePort:     cfg.Core.Port,
			Targets:      cfg.Services.Targets,
			StartupGrace: common.ParseDuration(cfg.Core.StartupGrace, 0),
			LogCheck:     cfg.Schedule.LogCheck,
			Sweep:        cfg.Schedule.Sweep,
		},
		a.LogScanService,
		a.EvaluatorService,
		a.ProberService,
		a.ExecutorService,
		monitorHistory,
		state,
		a.Clock,
	)

	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.StorageManager = nil
		a.Logger.Info().Msg("Storage closed")
	}
	return nil
}

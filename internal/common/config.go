package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/vigil/internal/models"
)

// Minimum spacing between two runs of a monitor cadence.
const MinScheduleInterval = 10 * time.Second

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment" yaml:"environment"` // "development" or "production"
	Logging     LoggingConfig     `toml:"logging" yaml:"logging"`
	Storage     StorageConfig     `toml:"storage" yaml:"storage"`
	History     HistoryConfig     `toml:"history" yaml:"history"`
	LogScan     LogScanConfig     `toml:"logscan" yaml:"logscan"`
	Correlation CorrelationConfig `toml:"correlation" yaml:"correlation"`
	Core        CoreConfig        `toml:"core" yaml:"core"`
	Services    ServicesConfig    `toml:"services" yaml:"services"`
	Schedule    ScheduleConfig    `toml:"schedule" yaml:"schedule"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output" yaml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format" yaml:"time_format"`
	Dir        string   `toml:"dir" yaml:"dir"` // Directory for vigil.log and crash reports
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger" yaml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"`
}

// HistoryConfig controls persistence of corrective action outcomes.
type HistoryConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Retention string `toml:"retention" yaml:"retention"` // e.g. "168h"; empty keeps everything
}

// LogScanConfig describes the monitored log file and how it is classified.
type LogScanConfig struct {
	Path             string          `toml:"path" yaml:"path" validate:"required"`
	Mode             string          `toml:"mode" yaml:"mode" validate:"oneof=recent all"`
	Horizon          string          `toml:"horizon" yaml:"horizon"`
	ReadMode         string          `toml:"read_mode" yaml:"read_mode" validate:"oneof=full incremental"`
	TimestampLayouts []string        `toml:"timestamp_layouts" yaml:"timestamp_layouts" validate:"min=1,dive,required"`
	Location         string          `toml:"location" yaml:"location"` // IANA zone for log timestamps; empty = local
	Markers          []models.Marker `toml:"markers" yaml:"markers" validate:"min=1,dive"`
}

// CorrelationConfig is the trigger/confirm pair that warrants a restart.
type CorrelationConfig struct {
	Trigger string `toml:"trigger" yaml:"trigger" validate:"required"`
	Confirm string `toml:"confirm" yaml:"confirm" validate:"required"`
	MaxGap  string `toml:"max_gap" yaml:"max_gap" validate:"required"`
}

// CoreConfig describes the managed core server.
type CoreConfig struct {
	Name               string   `toml:"name" yaml:"name" validate:"required"`
	Host               string   `toml:"host" yaml:"host" validate:"required"`
	Port               int      `toml:"port" yaml:"port" validate:"min=1,max=65535"`
	ProbeTimeout       string   `toml:"probe_timeout" yaml:"probe_timeout"`
	WorkDir            string   `toml:"work_dir" yaml:"work_dir"`
	StopCommand        []string `toml:"stop_command" yaml:"stop_command" validate:"min=1,dive,required"`
	StartCommand       []string `toml:"start_command" yaml:"start_command" validate:"min=1,dive,required"`
	StopTimeout        string   `toml:"stop_timeout" yaml:"stop_timeout"`
	SettleDelay        string   `toml:"settle_delay" yaml:"settle_delay"`
	StartupGrace       string   `toml:"startup_grace" yaml:"startup_grace"`
	MaxRestartsPerHour int      `toml:"max_restarts_per_hour" yaml:"max_restarts_per_hour" validate:"gte=0"`
}

// ServicesConfig describes the auxiliary OS services kept running.
type ServicesConfig struct {
	StateCommand   []string               `toml:"state_command" yaml:"state_command" validate:"min=1,dive,required"`
	RunningMarker  string                 `toml:"running_marker" yaml:"running_marker" validate:"required"`
	StartCommand   []string               `toml:"start_command" yaml:"start_command" validate:"min=1,dive,required"`
	CommandTimeout string                 `toml:"command_timeout" yaml:"command_timeout"`
	Targets        []models.ServiceTarget `toml:"targets" yaml:"targets" validate:"dive"`
}

// ScheduleConfig holds the cron expressions of the two monitor cadences.
type ScheduleConfig struct {
	LogCheck string `toml:"log_check" yaml:"log_check" validate:"required"` // log evaluation only
	Sweep    string `toml:"sweep" yaml:"sweep" validate:"required"`         // log evaluation + liveness sweep
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	cfg := &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
			Dir:        "./logs",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: "720h", // 30 days
		},
		LogScan: LogScanConfig{
			Mode:             "recent",
			Horizon:          "180s",
			ReadMode:         "full",
			TimestampLayouts: []string{"2006-01-02 15:04:05,000", "2006-01-02 15:04:05"},
			Markers:          models.DefaultMarkers(),
		},
		Correlation: CorrelationConfig{
			Trigger: string(models.EventStartupError),
			Confirm: string(models.EventStartFailure),
			MaxGap:  "5m",
		},
		Core: CoreConfig{
			Name:               "nacos",
			Host:               "localhost",
			Port:               8848,
			ProbeTimeout:       "3s",
			StopTimeout:        "2m",
			SettleDelay:        "10s",
			StartupGrace:       "0s",
			MaxRestartsPerHour: 0,
		},
		Services: ServicesConfig{
			CommandTimeout: "1m",
		},
		Schedule: ScheduleConfig{
			LogCheck: "@every 1m",
			Sweep:    "@every 2m",
		},
	}
	applyPlatformDefaults(cfg, runtime.GOOS)
	return cfg
}

// applyPlatformDefaults fills the OS-specific paths and commands.
func applyPlatformDefaults(cfg *Config, goos string) {
	if goos == "windows" {
		cfg.LogScan.Path = `D:\nacos\logs\nacos.log`
		cfg.Core.WorkDir = `D:\nacos\bin`
		cfg.Core.StopCommand = []string{"cmd", "/c", "shutdown.cmd"}
		cfg.Core.StartCommand = []string{"cmd", "/c", "startup.cmd", "-m", "standalone"}
		cfg.Services.StateCommand = []string{"sc", "query"}
		cfg.Services.RunningMarker = "RUNNING"
		cfg.Services.StartCommand = []string{"net", "start"}
		return
	}
	cfg.LogScan.Path = "/opt/nacos/logs/nacos.log"
	cfg.Core.WorkDir = "/opt/nacos/bin"
	cfg.Core.StopCommand = []string{"sh", "shutdown.sh"}
	cfg.Core.StartCommand = []string{"sh", "startup.sh", "-m", "standalone"}
	cfg.Services.StateCommand = []string{"systemctl", "is-active"}
	cfg.Services.RunningMarker = "active"
	cfg.Services.StartCommand = []string{"systemctl", "start"}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. Files ending in .yaml or .yml are parsed as YAML,
// everything else as TOML. CLI overrides are applied separately by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIGIL_ENV"); env != "" {
		config.Environment = env
	}

	// Logging configuration
	if level := os.Getenv("VIGIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VIGIL_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if dir := os.Getenv("VIGIL_LOG_DIR"); dir != "" {
		config.Logging.Dir = dir
	}

	// Storage configuration
	if badgerPath := os.Getenv("VIGIL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Log scan configuration
	if path := os.Getenv("VIGIL_LOGSCAN_PATH"); path != "" {
		config.LogScan.Path = path
	}
	if mode := os.Getenv("VIGIL_LOGSCAN_MODE"); mode != "" {
		config.LogScan.Mode = mode
	}
	if readMode := os.Getenv("VIGIL_LOGSCAN_READ_MODE"); readMode != "" {
		config.LogScan.ReadMode = readMode
	}
	if horizon := os.Getenv("VIGIL_LOGSCAN_HORIZON"); horizon != "" {
		config.LogScan.Horizon = horizon
	}

	// Core server configuration
	if host := os.Getenv("VIGIL_CORE_HOST"); host != "" {
		config.Core.Host = host
	}
	if port := os.Getenv("VIGIL_CORE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Core.Port = p
		}
	}
	if workDir := os.Getenv("VIGIL_CORE_WORK_DIR"); workDir != "" {
		config.Core.WorkDir = workDir
	}
	if maxRestarts := os.Getenv("VIGIL_CORE_MAX_RESTARTS_PER_HOUR"); maxRestarts != "" {
		if mr, err := strconv.Atoi(maxRestarts); err == nil {
			config.Core.MaxRestartsPerHour = mr
		}
	}

	// Schedule configuration
	if logCheck := os.Getenv("VIGIL_SCHEDULE_LOG_CHECK"); logCheck != "" {
		config.Schedule.LogCheck = logCheck
	}
	if sweep := os.Getenv("VIGIL_SCHEDULE_SWEEP"); sweep != "" {
		config.Schedule.Sweep = sweep
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, logLevel string, logPath string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logPath != "" {
		config.LogScan.Path = logPath
	}
}

// Validate checks struct constraints, durations, schedules and that the
// correlation rule refers to kinds the classification table can produce.
func (c *Config) Validate() error {
	var errs []error

	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, err)
	}

	durations := map[string]string{
		"logscan.horizon":          c.LogScan.Horizon,
		"correlation.max_gap":      c.Correlation.MaxGap,
		"core.probe_timeout":       c.Core.ProbeTimeout,
		"core.stop_timeout":        c.Core.StopTimeout,
		"core.settle_delay":        c.Core.SettleDelay,
		"core.startup_grace":       c.Core.StartupGrace,
		"services.command_timeout": c.Services.CommandTimeout,
		"history.retention":        c.History.Retention,
	}
	keys := make([]string, 0, len(durations))
	for k := range durations {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		value := durations[key]
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q: %w", key, value, err))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s: duration must not be negative, got %s", key, value))
		}
	}

	if err := ValidateSchedule(c.Schedule.LogCheck); err != nil {
		errs = append(errs, fmt.Errorf("schedule.log_check: %w", err))
	}
	if err := ValidateSchedule(c.Schedule.Sweep); err != nil {
		errs = append(errs, fmt.Errorf("schedule.sweep: %w", err))
	}

	if c.LogScan.Location != "" {
		if _, err := time.LoadLocation(c.LogScan.Location); err != nil {
			errs = append(errs, fmt.Errorf("logscan.location: %w", err))
		}
	}

	kinds := make(map[models.EventKind]bool, len(c.LogScan.Markers))
	for _, m := range c.LogScan.Markers {
		kinds[m.Kind] = true
	}
	if c.Correlation.Trigger != "" && !kinds[models.EventKind(c.Correlation.Trigger)] {
		errs = append(errs, fmt.Errorf("correlation.trigger %q is not produced by any logscan marker", c.Correlation.Trigger))
	}
	if c.Correlation.Confirm != "" && !kinds[models.EventKind(c.Correlation.Confirm)] {
		errs = append(errs, fmt.Errorf("correlation.confirm %q is not produced by any logscan marker", c.Correlation.Confirm))
	}

	seen := make(map[string]bool, len(c.Services.Targets))
	for i, t := range c.Services.Targets {
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("services.targets[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true
		if t.Probe == models.ProbePort && (t.Host == "" || t.Port == 0) {
			errs = append(errs, fmt.Errorf("services.targets[%d] %q: port probe requires host and port", i, t.Name))
		}
	}

	return errors.Join(errs...)
}

// ValidateSchedule validates a cron expression (standard 5-field or a
// descriptor such as "@every 2m") and enforces MinScheduleInterval.
func ValidateSchedule(expr string) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	// Compare two consecutive activations from a fixed reference point
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := schedule.Next(ref)
	second := schedule.Next(first)
	if first.IsZero() || second.IsZero() {
		return fmt.Errorf("schedule %q never fires", expr)
	}
	if interval := second.Sub(first); interval < MinScheduleInterval {
		return fmt.Errorf("schedule interval must be at least %s, got %s", MinScheduleInterval, interval)
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// CorrelationRule builds the evaluator rule from config.
func (c *Config) CorrelationRule() models.CorrelationRule {
	return models.CorrelationRule{
		Trigger: models.EventKind(c.Correlation.Trigger),
		Confirm: models.EventKind(c.Correlation.Confirm),
		MaxGap:  ParseDuration(c.Correlation.MaxGap, 5*time.Minute),
	}
}

// ParseDuration parses value, returning fallback when value is empty or invalid.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

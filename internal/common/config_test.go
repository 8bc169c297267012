package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_Validates(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8848, cfg.Core.Port)
	assert.Equal(t, "recent", cfg.LogScan.Mode)
	assert.Equal(t, "full", cfg.LogScan.ReadMode)
	assert.Len(t, cfg.LogScan.Markers, 5)
	assert.Equal(t, models.CorrelationRule{
		Trigger: models.EventStartupError,
		Confirm: models.EventStartFailure,
		MaxGap:  5 * time.Minute,
	}, cfg.CorrelationRule())
}

func TestApplyPlatformDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	applyPlatformDefaults(cfg, "windows")
	assert.Equal(t, []string{"cmd", "/c", "shutdown.cmd"}, cfg.Core.StopCommand)
	assert.Equal(t, []string{"cmd", "/c", "startup.cmd", "-m", "standalone"}, cfg.Core.StartCommand)
	assert.Equal(t, []string{"sc", "query"}, cfg.Services.StateCommand)
	assert.Equal(t, "RUNNING", cfg.Services.RunningMarker)
	assert.Equal(t, []string{"net", "start"}, cfg.Services.StartCommand)

	applyPlatformDefaults(cfg, "linux")
	assert.Equal(t, []string{"systemctl", "is-active"}, cfg.Services.StateCommand)
	assert.Equal(t, "active", cfg.Services.RunningMarker)
}

func TestLoadFromFiles_TOML(t *testing.T) {
	path := writeFile(t, "vigil.toml", `
environment = "production"

[core]
host = "10.0.0.5"
port = 9848
settle_delay = "15s"
max_restarts_per_hour = 4

[logscan]
path = "/var/log/nacos/nacos.log"
read_mode = "incremental"

[[services.targets]]
name = "ApolloTcp"
probe = "service"

[[services.targets]]
name = "gateway"
probe = "port"
host = "127.0.0.1"
port = 8080
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "10.0.0.5", cfg.Core.Host)
	assert.Equal(t, 9848, cfg.Core.Port)
	assert.Equal(t, "15s", cfg.Core.SettleDelay)
	assert.Equal(t, 4, cfg.Core.MaxRestartsPerHour)
	assert.Equal(t, "incremental", cfg.LogScan.ReadMode)
	assert.Equal(t, "2m", cfg.Core.StopTimeout, "unset keys keep defaults")
	require.Len(t, cfg.Services.Targets, 2)
	assert.Equal(t, models.ProbeService, cfg.Services.Targets[0].Probe)
	assert.Equal(t, "127.0.0.1:8080", cfg.Services.Targets[1].Address())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	base := writeFile(t, "base.toml", "[core]\nport = 9000\nhost = \"a\"\n")
	override := writeFile(t, "override.yaml", "core:\n  port: 9100\n")

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Core.Port)
	assert.Equal(t, "a", cfg.Core.Host)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeFile(t, "bad.toml", "[core\nport = "))
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_CORE_PORT", "9200")
	t.Setenv("VIGIL_LOG_OUTPUT", "stdout, file")
	t.Setenv("VIGIL_LOGSCAN_PATH", "/tmp/nacos.log")
	t.Setenv("VIGIL_SCHEDULE_SWEEP", "@every 5m")
	t.Setenv("VIGIL_CORE_MAX_RESTARTS_PER_HOUR", "not-a-number")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Core.Port)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
	assert.Equal(t, "/tmp/nacos.log", cfg.LogScan.Path)
	assert.Equal(t, "@every 5m", cfg.Schedule.Sweep)
	assert.Equal(t, 0, cfg.Core.MaxRestartsPerHour, "invalid numbers are ignored")
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, "debug", "/data/nacos.log")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/data/nacos.log", cfg.LogScan.Path)

	ApplyFlagOverrides(cfg, "", "")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "rule kind not produced by markers",
			mutate: func(c *Config) { c.Correlation.Trigger = "connection_lost" },
			want:   "correlation.trigger",
		},
		{
			name: "confirm kind removed from markers",
			mutate: func(c *Config) {
				c.LogScan.Markers = []models.Marker{{Substring: "ERROR Startup errors", Kind: models.EventStartupError}}
			},
			want: "correlation.confirm",
		},
		{
			name:   "schedule too frequent",
			mutate: func(c *Config) { c.Schedule.LogCheck = "@every 5s" },
			want:   "schedule.log_check",
		},
		{
			name:   "bad cron",
			mutate: func(c *Config) { c.Schedule.Sweep = "sometimes" },
			want:   "schedule.sweep",
		},
		{
			name:   "bad duration",
			mutate: func(c *Config) { c.Core.SettleDelay = "ten seconds" },
			want:   "core.settle_delay",
		},
		{
			name:   "negative duration",
			mutate: func(c *Config) { c.Correlation.MaxGap = "-1m" },
			want:   "correlation.max_gap",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
			want:   "Level",
		},
		{
			name:   "bad mode",
			mutate: func(c *Config) { c.LogScan.Mode = "latest" },
			want:   "Mode",
		},
		{
			name: "duplicate targets",
			mutate: func(c *Config) {
				c.Services.Targets = []models.ServiceTarget{
					{Name: "ApolloTcp", Probe: models.ProbeService},
					{Name: "ApolloTcp", Probe: models.ProbeService},
				}
			},
			want: "duplicate name",
		},
		{
			name: "port target without port",
			mutate: func(c *Config) {
				c.Services.Targets = []models.ServiceTarget{{Name: "gateway", Probe: models.ProbePort, Host: "localhost"}}
			},
			want: "requires host and port",
		},
		{
			name:   "bad location",
			mutate: func(c *Config) { c.LogScan.Location = "Mars/Olympus" },
			want:   "logscan.location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("@every 2m"))
	assert.NoError(t, ValidateSchedule("*/5 * * * *"))
	assert.NoError(t, ValidateSchedule("@every 10s"))
	assert.Error(t, ValidateSchedule("@every 9s"))
	assert.Error(t, ValidateSchedule(""))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, ParseDuration("10s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestLoadFromFiles_DeploymentExample(t *testing.T) {
	cfg, err := LoadFromFiles(filepath.Join("..", "..", "deployments", "local", "vigil.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8848, cfg.Core.Port)
	assert.Equal(t, "incremental", cfg.LogScan.ReadMode)
	assert.Equal(t, []string{"sc", "query"}, cfg.Services.StateCommand)
	require.Len(t, cfg.Services.Targets, 8)
	assert.Equal(t, "ApolloTcp", cfg.Services.Targets[7].UnitName())
}

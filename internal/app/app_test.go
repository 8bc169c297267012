package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/commands"
	"github.com/ternarybob/vigil/internal/storage/badger"
)

// closedPort returns a local port that nothing is listening on.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func writeIncidentLog(t *testing.T, dir string) string {
	t.Helper()
	now := time.Now()
	stamp := func(ago time.Duration) string {
		return now.Add(-ago).Format("2006-01-02 15:04:05,000")
	}

	lines := []string{
		stamp(90*time.Second) + " INFO Nacos is starting...",
		stamp(60*time.Second) + " ERROR Startup errors : java.lang.IllegalStateException",
		stamp(30*time.Second) + " ERROR Nacos failed to start, please see logs for detail",
	}
	path := filepath.Join(dir, "nacos.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func newTestConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(dir, "data")
	cfg.LogScan.Path = writeIncidentLog(t, dir)
	cfg.Core.Host = "127.0.0.1"
	cfg.Core.Port = closedPort(t)
	cfg.Core.ProbeTimeout = "500ms"
	cfg.Core.SettleDelay = "0s"
	cfg.Core.WorkDir = dir
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNew_DryRunCycleRestartsOnce(t *testing.T) {
	cfg := newTestConfig(t)

	a, err := New(cfg, arbor.NewLogger(), Options{DryRun: true})
	require.NoError(t, err)

	assert.IsType(t, &commands.DryRunRunner{}, a.ActionRunner)
	require.NotNil(t, a.HistoryService)

	report := a.MonitorService.RunCycle(context.Background(), true)

	assert.Empty(t, report.Errors)
	assert.Equal(t, models.DecisionRestart, report.Decision)
	assert.Equal(t, 2, report.Events)
	require.Len(t, report.Actions, 1, "log incident and closed port share one restart")
	assert.Equal(t, models.ActionRestartServer, report.Actions[0].Action)
	assert.True(t, report.Actions[0].Succeeded)
	require.NoError(t, a.Close())
}

func TestNew_DryRunLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.LogScan.ReadMode = "incremental"

	dry, err := New(cfg, arbor.NewLogger(), Options{DryRun: true})
	require.NoError(t, err)
	report := dry.MonitorService.RunCycle(ctx, false)
	require.Len(t, report.Actions, 1)

	state := dry.StorageManager.StateStorage()
	marker, err := state.GetIncidentMarker(ctx)
	require.NoError(t, err)
	assert.Nil(t, marker, "a dry run does not mark the incident handled")

	cursor, err := state.GetCursor(ctx, cfg.LogScan.Path)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	recent, err := dry.HistoryService.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent, "dry-run outcomes are not recorded")
	require.NoError(t, dry.Close())

	// the next instance still sees the incident as unhandled
	next, err := New(cfg, arbor.NewLogger(), Options{DryRun: true})
	require.NoError(t, err)
	defer next.Close()

	report = next.MonitorService.RunCycle(ctx, false)
	assert.Equal(t, models.DecisionRestart, report.Decision)
	assert.Empty(t, report.Suppressed)
	require.Len(t, report.Actions, 1)
}

func TestReadOnlyState(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	manager, err := badger.NewManager(arbor.NewLogger(), &cfg.Storage.Badger)
	require.NoError(t, err)
	defer manager.Close()

	stored := &models.IncidentMarker{TriggerAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), OutcomeID: "act_1"}
	require.NoError(t, manager.StateStorage().SaveIncidentMarker(ctx, stored))

	state := readOnlyState{manager.StateStorage()}
	require.NoError(t, state.SaveIncidentMarker(ctx, &models.IncidentMarker{OutcomeID: "act_2"}))
	require.NoError(t, state.SaveCursor(ctx, &models.LogCursor{Path: "nacos.log", Offset: 10}))

	marker, err := state.GetIncidentMarker(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, "act_1", marker.OutcomeID)

	cursor, err := state.GetCursor(ctx, "nacos.log")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestNew_HistoryDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.History.Enabled = false

	a, err := New(cfg, arbor.NewLogger(), Options{DryRun: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.HistoryService)
	assert.NotNil(t, a.StorageManager)
}

func TestNew_StorageOptional(t *testing.T) {
	cfg := newTestConfig(t)

	first, err := New(cfg, arbor.NewLogger(), Options{DryRun: true})
	require.NoError(t, err)
	defer first.Close()

	// The first instance holds the database lock.
	_, err = New(cfg, arbor.NewLogger(), Options{DryRun: true})
	assert.Error(t, err)

	second, err := New(cfg, arbor.NewLogger(), Options{DryRun: true, StorageOptional: true})
	require.NoError(t, err)
	defer second.Close()

	assert.Nil(t, second.StorageManager)
	assert.Nil(t, second.HistoryService)

	report := second.MonitorService.RunCycle(context.Background(), false)
	assert.Equal(t, models.DecisionRestart, report.Decision)
	require.Len(t, report.Actions, 1)
	assert.True(t, report.Actions[0].Succeeded)
}

func TestNew_BadLocation(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.LogScan.Location = "Nowhere/Special"

	_, err := New(cfg, arbor.NewLogger(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log scan service")
}

func TestClose_Idempotent(t *testing.T) {
	cfg := newTestConfig(t)
	a, err := New(cfg, arbor.NewLogger(), Options{DryRun: true})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Nil(t, a.StorageManager)
}

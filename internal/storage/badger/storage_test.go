package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	cfg := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "state")}
	manager, err := NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestOutcomeStorage_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).OutcomeStorage()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, target := range []string{"core", "ApolloTcp", "core"} {
		outcome := &models.ActionOutcome{
			Action:    models.ActionRestartServer,
			Target:    target,
			Succeeded: i%2 == 0,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveOutcome(ctx, outcome))
		assert.NotEmpty(t, outcome.ID)
	}

	all, err := store.ListOutcomes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Minute), all[0].StartedAt.UTC(), "newest first")
	assert.Equal(t, base, all[2].StartedAt.UTC())

	limited, err := store.ListOutcomes(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestOutcomeStorage_SaveNil(t *testing.T) {
	store := newTestManager(t).OutcomeStorage()
	assert.Error(t, store.SaveOutcome(context.Background(), nil))
}

func TestOutcomeStorage_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).OutcomeStorage()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveOutcome(ctx, &models.ActionOutcome{
			Action:    models.ActionStartService,
			Target:    "ApolloGateway",
			StartedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	deleted, err := store.DeleteOutcomesBefore(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := store.ListOutcomes(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)

	deleted, err = store.DeleteOutcomesBefore(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStateStorage_Cursor(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).StateStorage()

	cursor, err := store.GetCursor(ctx, "/var/log/nacos.log")
	require.NoError(t, err)
	assert.Nil(t, cursor)

	require.NoError(t, store.SaveCursor(ctx, &models.LogCursor{Path: "/var/log/nacos.log", Offset: 42, Size: 42}))
	require.NoError(t, store.SaveCursor(ctx, &models.LogCursor{Path: "/var/log/other.log", Offset: 7, Size: 9}))

	cursor, err = store.GetCursor(ctx, "/var/log/nacos.log")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, int64(42), cursor.Offset)
	assert.False(t, cursor.UpdatedAt.IsZero())

	assert.Error(t, store.SaveCursor(ctx, &models.LogCursor{}))
}

func TestStateStorage_IncidentMarker(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).StateStorage()

	marker, err := store.GetIncidentMarker(ctx)
	require.NoError(t, err)
	assert.Nil(t, marker)

	trigger := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveIncidentMarker(ctx, &models.IncidentMarker{TriggerAt: trigger, OutcomeID: "abc"}))

	marker, err = store.GetIncidentMarker(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.True(t, trigger.Equal(marker.TriggerAt))
	assert.Equal(t, "abc", marker.OutcomeID)
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state")
	logger := arbor.NewLogger()

	first, err := NewManager(logger, &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.StateStorage().SaveIncidentMarker(ctx, &models.IncidentMarker{OutcomeID: "x"}))
	require.NoError(t, first.Close())

	second, err := NewManager(logger, &common.BadgerConfig{Path: path, ResetOnStartup: true})
	require.NoError(t, err)
	defer second.Close()

	marker, err := second.StateStorage().GetIncidentMarker(ctx)
	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestBadgerDB_CollectGarbageNothingToReclaim(t *testing.T) {
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "state")})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.CollectGarbage())
}

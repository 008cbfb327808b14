package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/maintenance"
	"github.com/oceanbase/agentmem/pkg/memory"
)

func TestMaintenanceScheduler_RunCycleExecutesDecay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := memory.NewRecord("tenant-sched-1", "default", "memory")
	rec.Layer = memory.LayerEpisodic
	rec.Importance = 0.8
	require.NoError(t, store.Insert(ctx, rec))

	decay := maintenance.NewDecayWorker(store)
	sched, err := maintenance.NewMaintenanceScheduler(decay, nil, nil)
	require.NoError(t, err)

	report := sched.RunCycle(ctx)
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.DecayStats.TotalTenants)
	assert.NotZero(t, report.RunID)
}

func TestMaintenanceScheduler_RejectsOverlappingCycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	decay := maintenance.NewDecayWorker(store)
	sched, err := maintenance.NewMaintenanceScheduler(decay, nil, nil)
	require.NoError(t, err)
	sched.CooldownPeriod = time.Hour

	first := sched.RunCycle(ctx)
	require.NoError(t, first.Err)

	second := sched.RunCycle(ctx)
	assert.ErrorIs(t, second.Err, memory.ErrMaintenanceCycleInProgress)
}

func TestMaintenanceScheduler_StartsIdle(t *testing.T) {
	sched, err := maintenance.NewMaintenanceScheduler(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StateIdle, sched.State())
}

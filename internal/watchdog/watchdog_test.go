package watchdog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/orchestrator"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/scheduler"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/testutil"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/watchdog"
)

func TestSweep_RearmsOnlyOverdueRearms(t *testing.T) {
	db := testutil.NewDatabase(t)
	gw := testutil.NewFakeGateway()
	ctx := context.Background()

	camera := testutil.NewCamera(t, db, "door", models.ActionDict{
		"motion": {"else": {}},
		"face":   {"else": {}},
	})
	for _, algorithm := range []string{"motion", "face"} {
		ok, err := db.CompareAndSetStatus(ctx, camera.ID, algorithm, models.StatusIdle, models.StatusRunning)
		require.NoError(t, err)
		require.True(t, ok)
	}
	// motion got its result and its cooldown was lost; face is still detecting
	require.NoError(t, db.MarkRearmDue(ctx, camera.ID, "motion", time.Now().Add(10*time.Millisecond)))

	w := watchdog.New(db, orchestrator.NewRearmer(db, gw), time.Minute, 20*time.Millisecond)

	// overdue, but not by more than the grace period
	rearmed, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rearmed)

	time.Sleep(50 * time.Millisecond)
	rearmed, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rearmed)

	stored, err := db.GetCamera(ctx, camera.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIdle, stored.AlgorithmStatus["motion"])
	assert.Equal(t, models.StatusRunning, stored.AlgorithmStatus["face"])

	resets := gw.Recorded(models.CommandStopAndReset)
	require.Len(t, resets, 1)
	assert.Equal(t, "motion", resets[0].Name)
}

func TestSweep_LeavesTriggeredAlgorithmWithoutResult(t *testing.T) {
	db := testutil.NewDatabase(t)
	gw := testutil.NewFakeGateway()
	rearmer := orchestrator.NewRearmer(db, gw)
	timer := scheduler.NewTimer(context.Background(), rearmer.Rearm)
	t.Cleanup(func() { _ = timer.Close() })
	svc := orchestrator.New(db, gw, timer, orchestrator.Config{Cooldown: time.Hour})
	ctx := context.Background()

	camera := testutil.NewCamera(t, db, "door", models.ActionDict{"motion": {"else": {}}})
	report, err := svc.Trigger(ctx, camera.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"motion"}, report.Started)

	time.Sleep(40 * time.Millisecond)
	rearmed, err := watchdog.New(db, rearmer, time.Minute, 20*time.Millisecond).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rearmed)

	stored, err := db.GetCamera(ctx, camera.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, stored.AlgorithmStatus["motion"])
	assert.Empty(t, gw.Recorded(models.CommandStopAndReset))
}

func TestSweep_Disabled(t *testing.T) {
	db := testutil.NewDatabase(t)
	gw := testutil.NewFakeGateway()
	ctx := context.Background()

	camera := testutil.NewCamera(t, db, "door", models.ActionDict{"motion": {"else": {}}})
	_, err := db.CompareAndSetStatus(ctx, camera.ID, "motion", models.StatusIdle, models.StatusRunning)
	require.NoError(t, err)
	require.NoError(t, db.MarkRearmDue(ctx, camera.ID, "motion", time.Now().Add(-time.Minute)))

	w := watchdog.New(db, orchestrator.NewRearmer(db, gw), time.Minute, 0)
	assert.False(t, w.Enabled())

	rearmed, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rearmed)
	assert.Empty(t, gw.Recorded(models.CommandStopAndReset))
}

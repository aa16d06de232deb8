package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitUpdatesTaskTimeline(t *testing.T) {
	var snapshots []Snapshot
	tracker := NewTracker(2, ObserverFunc(func(s Snapshot) {
		snapshots = append(snapshots, s)
	}))

	tracker.Emit("t1", "Gather intel", "Starting...", StatusInProgress, LevelTask, nil)
	tracker.Emit("t1", "Gather intel", "Loading skill...", StatusInProgress, LevelSkill, nil)
	tracker.Emit("t1", "Gather intel", "Done", StatusCompleted, LevelTask, nil)

	require.Len(t, snapshots, 3)
	final := snapshots[2]
	assert.Equal(t, 1, final.Completed)
	assert.Equal(t, 0, final.Failed)
	assert.InDelta(t, 50.0, final.ProgressPercent, 1e-9)
	assert.True(t, final.InProgress)

	require.Len(t, final.Tasks, 1)
	assert.Equal(t, StatusCompleted, final.Tasks[0].Status)
	assert.Len(t, final.Tasks[0].Actions, 3)
}

func TestProgressPercentClamped(t *testing.T) {
	tracker := NewTracker(1, nil)
	tracker.Emit("t1", "a", "start", StatusInProgress, LevelTask, nil)
	tracker.Emit("t1", "a", "done", StatusCompleted, LevelTask, nil)
	// A stray extra terminal event must not push the percentage past 100.
	tracker.Emit("t2", "b", "done", StatusCompleted, LevelTask, nil)

	assert.LessOrEqual(t, tracker.Snapshot().ProgressPercent, 100.0)
}

func TestCurrentActionTracksLatestInProgress(t *testing.T) {
	tracker := NewTracker(2, nil)

	tracker.Emit("t1", "first", "working", StatusInProgress, LevelSkill, nil)
	snap := tracker.Snapshot()
	require.NotNil(t, snap.CurrentAction)
	assert.Equal(t, "t1", snap.CurrentAction.TaskID)
	assert.Equal(t, LevelSkill, snap.CurrentAction.Level)

	tracker.Emit("t1", "first", "done", StatusCompleted, LevelTask, nil)
	assert.Nil(t, tracker.Snapshot().CurrentAction)
}

func TestETA(t *testing.T) {
	tracker := NewTracker(3, nil)
	assert.Equal(t, "Calculating...", tracker.Snapshot().ETA)

	tracker.Emit("t1", "a", "start", StatusInProgress, LevelTask, nil)
	tracker.Emit("t1", "a", "done", StatusCompleted, LevelTask, nil)
	// One completion recorded, two remaining: a concrete estimate.
	assert.NotEqual(t, "Calculating...", tracker.Snapshot().ETA)

	tracker.Emit("t2", "b", "start", StatusInProgress, LevelTask, nil)
	tracker.Emit("t2", "b", "done", StatusCompleted, LevelTask, nil)
	tracker.Emit("t3", "c", "start", StatusInProgress, LevelTask, nil)
	tracker.Emit("t3", "c", "fail", StatusFailed, LevelTask, nil)
	assert.Equal(t, "Almost done...", tracker.Snapshot().ETA)
}

func TestActionsTruncatedToLastFive(t *testing.T) {
	tracker := NewTracker(1, nil)
	for i := 0; i < 8; i++ {
		tracker.Emit("t1", "a", "step", StatusInProgress, LevelAction, nil)
	}

	snap := tracker.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Len(t, snap.Tasks[0].Actions, 5)
}

func TestSetPhaseNotifies(t *testing.T) {
	var got Snapshot
	tracker := NewTracker(0, ObserverFunc(func(s Snapshot) { got = s }))
	tracker.SetPhase("Phase 1")
	assert.Equal(t, "Phase 1", got.Phase)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 seconds", formatDuration(45e9))
	assert.Equal(t, "1 minute 30 seconds", formatDuration(90e9))
	assert.Equal(t, "2 minutes 0 seconds", formatDuration(120e9))
	assert.Equal(t, "1 hour 5 minutes", formatDuration(3900e9))
}

package statusfeed

import (
	"testing"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/executor"
	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{}

func (fakeSource) ID() string { return "executor-7" }

func (fakeSource) PoolStats() pool.Stats {
	return pool.Stats{ID: "executor-7/pool", Size: 4, Busy: 1, Idle: 3, Completed: 9, Failed: 1}
}

func (fakeSource) NumaStatus() map[int]numa.NodeStatus {
	return map[int]numa.NodeStatus{0: {Busy: 1, Total: 2}, 1: {Busy: 0, Total: 2}}
}

func (fakeSource) ActivePlans() []executor.ActivePlan {
	return []executor.ActivePlan{{ExecutionID: 3, Plan: "numa_echo", Phase: "running", Started: time.Unix(0, 0)}}
}

func TestEventPayload(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		event events.Event
		want  map[string]any
	}{
		{
			name:  "plan event omits stage fields",
			event: events.Event{Kind: events.PlanStarted, Time: time.Unix(0, 0), Executor: "executor-1", Plan: "p", ExecutionID: 2},
			want: map[string]any{
				"kind": "plan_started", "time": "1970-01-01T00:00:00Z",
				"executor": "executor-1", "plan": "p", "execution_id": uint64(2),
			},
		},
		{
			name: "stage failure carries status, duration and error",
			event: events.Event{
				Kind: events.StageFinished, Time: time.Unix(0, 0), Executor: "executor-1", Plan: "p", ExecutionID: 2,
				Stage: "s", StageIndex: 1, StageKind: "serial-cmd", Status: "failed", Duration: 1500 * time.Millisecond, Error: "boom",
			},
			want: map[string]any{
				"kind": "stage_finished", "time": "1970-01-01T00:00:00Z",
				"executor": "executor-1", "plan": "p", "execution_id": uint64(2),
				"stage": "s", "stage_index": 1, "stage_kind": "serial-cmd",
				"status": "failed", "duration_ms": int64(1500), "error": "boom",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, EventPayload(tc.event))
		})
	}
}

func TestFeed_SnapshotRequiresSource(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	feed := New(ctxlog.Discard())
	defer feed.Close()

	// --- Act ---
	_, before := feed.Snapshot()
	feed.Attach(fakeSource{})
	snap, after := feed.Snapshot()

	// --- Assert ---
	assert.False(t, before)
	require.True(t, after)
	assert.Equal(t, "executor-7", snap.Executor)
	assert.Equal(t, 4, snap.Pool.Size)
	assert.Len(t, snap.Active, 1)
}

func TestSnapshotPayload(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	snap := Snapshot{
		Executor: "executor-7",
		Time:     time.Unix(0, 0),
		Pool:     fakeSource{}.PoolStats(),
		Numa:     fakeSource{}.NumaStatus(),
		Active:   fakeSource{}.ActivePlans(),
	}

	// --- Act ---
	p := SnapshotPayload(snap)

	// --- Assert ---
	assert.Equal(t, "executor-7", p["executor"])
	assert.Equal(t, map[string]any{
		"0": map[string]any{"busy": 1, "total": 2},
		"1": map[string]any{"busy": 0, "total": 2},
	}, p["numa"])
	poolView, ok := p["pool"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, uint64(9), poolView["completed"])
	active, ok := p["active"].([]any)
	require.True(t, ok)
	require.Len(t, active, 1)
	assert.Equal(t, "numa_echo", active[0].(map[string]any)["plan"])
}

func TestFeed_PublishWithoutWatchersIsNoop(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	feed := New(ctxlog.Discard())
	defer feed.Close()
	feed.Attach(fakeSource{})

	// --- Act & Assert ---
	assert.NotPanics(t, func() {
		feed.Publish(events.Event{Kind: events.PlanFinished, Plan: "p"})
	})
	assert.Equal(t, 0, feed.Watchers())
}

package statusfeed

import (
	"strconv"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/events"
)

// EventPayload flattens an event into the JSON object sent on the wire.
// Durations are sent as milliseconds.
func EventPayload(e events.Event) map[string]any {
	p := map[string]any{
		"kind":         string(e.Kind),
		"time":         e.Time.UTC().Format(time.RFC3339Nano),
		"executor":     e.Executor,
		"plan":         e.Plan,
		"execution_id": e.ExecutionID,
	}
	if e.Stage != "" {
		p["stage"] = e.Stage
		p["stage_index"] = e.StageIndex
		p["stage_kind"] = e.StageKind
	}
	if e.Status != "" {
		p["status"] = e.Status
	}
	if e.Duration > 0 {
		p["duration_ms"] = e.Duration.Milliseconds()
	}
	if e.Error != "" {
		p["error"] = e.Error
	}
	return p
}

// SnapshotPayload flattens a snapshot. NUMA node ids become string keys.
func SnapshotPayload(s Snapshot) map[string]any {
	numa := make(map[string]any, len(s.Numa))
	for node, st := range s.Numa {
		numa[strconv.Itoa(node)] = map[string]any{"busy": st.Busy, "total": st.Total}
	}
	active := make([]any, len(s.Active))
	for i, a := range s.Active {
		active[i] = map[string]any{
			"execution_id": a.ExecutionID,
			"plan":         a.Plan,
			"phase":        a.Phase,
			"started":      a.Started.UTC().Format(time.RFC3339Nano),
		}
	}
	return map[string]any{
		"executor": s.Executor,
		"time":     s.Time.UTC().Format(time.RFC3339Nano),
		"pool": map[string]any{
			"id":        s.Pool.ID,
			"size":      s.Pool.Size,
			"busy":      s.Pool.Busy,
			"idle":      s.Pool.Idle,
			"queued":    s.Pool.Queued,
			"completed": s.Pool.Completed,
			"failed":    s.Pool.Failed,
		},
		"numa":   numa,
		"active": active,
	}
}

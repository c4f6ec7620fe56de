// Package events carries plan and stage lifecycle notifications from the
// executor to observers such as the metrics exporter and the status feed.
package events

import "time"

// Kind names a lifecycle notification.
type Kind string

const (
	PlanStarted   Kind = "plan_started"
	PlanFinished  Kind = "plan_finished"
	StageStarted  Kind = "stage_started"
	StageSkipped  Kind = "stage_skipped"
	StageFinished Kind = "stage_finished"
	Terminating   Kind = "terminating"
)

// Event is one notification. Stage fields are empty for plan events.
type Event struct {
	Kind        Kind          `json:"kind"`
	Time        time.Time     `json:"time"`
	Executor    string        `json:"executor"`
	Plan        string        `json:"plan"`
	ExecutionID uint64        `json:"execution_id"`
	Stage       string        `json:"stage,omitempty"`
	StageIndex  int           `json:"stage_index"`
	StageKind   string        `json:"stage_kind,omitempty"`
	Status      string        `json:"status,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Sink receives events. Publish must not block for long; it is called on
// the executing goroutine.
type Sink interface {
	Publish(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) {
	f(e)
}

// Fanout publishes every event to each sink in order.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(e Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(e)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Package statusfeed broadcasts executor events and pool snapshots to
// socket.io clients such as `proofgridgo watch`.
package statusfeed

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/executor"
	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/pool"
	"github.com/zishang520/socket.io/v2/socket"
)

// Event names emitted to clients.
const (
	EventLifecycle = "lifecycle"
	EventSnapshot  = "snapshot"
)

// Path is where the socket.io handler is mounted.
const Path = "/socket.io/"

// Source provides the live executor view sent with each snapshot.
type Source interface {
	ID() string
	PoolStats() pool.Stats
	NumaStatus() map[int]numa.NodeStatus
	ActivePlans() []executor.ActivePlan
}

// Snapshot is the point-in-time executor view.
type Snapshot struct {
	Executor string                  `json:"executor"`
	Time     time.Time               `json:"time"`
	Pool     pool.Stats              `json:"pool"`
	Numa     map[int]numa.NodeStatus `json:"numa,omitempty"`
	Active   []executor.ActivePlan   `json:"active"`
}

// Feed is an events.Sink that relays every event to connected clients.
type Feed struct {
	io      *socket.Server
	logger  *slog.Logger
	clients atomic.Int64

	mu     sync.RWMutex
	source Source
}

var _ events.Sink = (*Feed)(nil)

// New creates a feed with its own socket.io server.
func New(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Feed{
		io:     socket.NewServer(nil, nil),
		logger: logger.With("component", "statusfeed"),
	}

	f.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		n := f.clients.Add(1)
		f.logger.Debug("Watcher connected.", "sid", client.Id(), "watchers", n)

		if snap, ok := f.Snapshot(); ok {
			if err := client.Emit(EventSnapshot, SnapshotPayload(snap)); err != nil {
				f.logger.Warn("Failed to send snapshot.", "sid", client.Id(), "error", err)
			}
		}
		client.On("disconnect", func(...any) {
			n := f.clients.Add(-1)
			f.logger.Debug("Watcher disconnected.", "sid", client.Id(), "watchers", n)
		})
	})
	return f
}

// Attach sets the executor the snapshots describe.
func (f *Feed) Attach(src Source) {
	f.mu.Lock()
	f.source = src
	f.mu.Unlock()
}

// Snapshot returns the current view, or false before Attach.
func (f *Feed) Snapshot() (Snapshot, bool) {
	f.mu.RLock()
	src := f.source
	f.mu.RUnlock()
	if src == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		Executor: src.ID(),
		Time:     time.Now(),
		Pool:     src.PoolStats(),
		Numa:     src.NumaStatus(),
		Active:   src.ActivePlans(),
	}, true
}

// Handler serves the socket.io endpoint.
func (f *Feed) Handler() http.Handler {
	return f.io.ServeHandler(nil)
}

// Watchers returns the number of connected clients.
func (f *Feed) Watchers() int {
	return int(f.clients.Load())
}

// Publish implements events.Sink. Plan and stage completions are followed by
// a fresh snapshot.
func (f *Feed) Publish(e events.Event) {
	if f.clients.Load() == 0 {
		return
	}
	f.io.Emit(EventLifecycle, EventPayload(e))
	switch e.Kind {
	case events.PlanStarted, events.PlanFinished, events.StageFinished, events.Terminating:
		if snap, ok := f.Snapshot(); ok {
			f.io.Emit(EventSnapshot, SnapshotPayload(snap))
		}
	}
}

// Close disconnects every client.
func (f *Feed) Close() {
	f.io.Close(nil)
}

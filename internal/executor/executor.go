package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/detect"
	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/pool"
	"github.com/specialistvlad/proofgridgo/internal/process"
)

// ErrTerminated is returned by Execute once Terminate has been called.
var ErrTerminated = errors.New("executor is terminated")

var executorSeq atomic.Uint64

// Executor runs plans against one shared process pool. Several plans may be
// executed concurrently; each gets its own state.
type Executor struct {
	id        string
	pool      *pool.Pool
	sink      events.Sink
	detection func() *detect.Plan

	planSeq    atomic.Uint64
	terminated atomic.Bool

	mu     sync.Mutex
	active map[uint64]*execution
}

type config struct {
	id         string
	maxPerNuma int
	runner     process.Runner
	recorder   pool.Recorder
	sinks      []events.Sink
	detection  func() *detect.Plan
	detectOpts []detect.Option
}

// Option configures an Executor.
type Option func(*config)

// WithMaxWorkersPerNuma sets the soft per-node cap. The default is 2.
func WithMaxWorkersPerNuma(n int) Option {
	return func(c *config) { c.maxPerNuma = n }
}

// WithRunner replaces the os/exec process runner.
func WithRunner(r process.Runner) Option {
	return func(c *config) { c.runner = r }
}

// WithRecorder attaches pool measurements.
func WithRecorder(r pool.Recorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithSink adds a lifecycle event observer. It may be given several times.
func WithSink(s events.Sink) Option {
	return func(c *config) { c.sinks = append(c.sinks, s) }
}

// WithID overrides the generated executor label.
func WithID(id string) Option {
	return func(c *config) { c.id = id }
}

// WithDetectionOptions adjusts the built-in detection plan.
func WithDetectionOptions(opts ...detect.Option) Option {
	return func(c *config) { c.detectOpts = append(c.detectOpts, opts...) }
}

// WithDetection replaces the detection plan factory.
func WithDetection(factory func() *detect.Plan) Option {
	return func(c *config) { c.detection = factory }
}

// New creates an executor owning a pool of poolSize workers.
func New(poolSize int, opts ...Option) *Executor {
	c := config{
		id:         fmt.Sprintf("executor-%d", executorSeq.Add(1)),
		maxPerNuma: numa.DefaultMaxWorkersPerNode,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.detection == nil {
		detectOpts := c.detectOpts
		c.detection = func() *detect.Plan { return detect.New(detectOpts...) }
	}

	poolOpts := []pool.Option{
		pool.WithID(c.id + "/pool"),
		pool.WithMaxWorkersPerNuma(c.maxPerNuma),
		pool.WithRunner(c.runner),
		pool.WithRecorder(c.recorder),
	}

	return &Executor{
		id:        c.id,
		pool:      pool.New(poolSize, poolOpts...),
		sink:      events.Fanout(c.sinks),
		detection: c.detection,
		active:    make(map[uint64]*execution),
	}
}

// ID returns the executor label.
func (e *Executor) ID() string {
	return e.id
}

// WorkerFreeStatus returns the sorted ids of idle pool workers.
func (e *Executor) WorkerFreeStatus() []int {
	return e.pool.WorkerFreeStatus()
}

// PoolStats returns a snapshot of the pool.
func (e *Executor) PoolStats() pool.Stats {
	return e.pool.Stats()
}

// NumaStatus returns the current NUMA node load.
func (e *Executor) NumaStatus() map[int]numa.NodeStatus {
	return e.pool.NumaStatus()
}

// Terminate runs the finally hook of every plan still executing, one at a
// time in start order. It neither interrupts running stages nor kills child
// processes. Hooks that already ran are not run again. After Terminate,
// Execute refuses new work.
func (e *Executor) Terminate(ctx context.Context) error {
	e.terminated.Store(true)
	logger := ctxlog.FromContext(ctx).With("executor", e.id)

	active := e.activeSorted()
	logger.Warn("🛑 Terminating executor, running cleanup for active plans.", "active_plans", len(active))
	e.sink.Publish(events.Event{Kind: events.Terminating, Time: time.Now(), Executor: e.id})

	var errs []error
	for _, x := range active {
		logger.Info("Calling the finally hook of an active plan.", "plan", x.plan, "execution_id", x.id, "phase", x.getPhase().String())
		if err := x.runFinally(ctx); err != nil {
			logger.Error("Finally hook failed during termination.", "plan", x.plan, "execution_id", x.id, "error", err)
			errs = append(errs, fmt.Errorf("finally of plan '%s' (execution %d): %w", x.plan, x.id, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) publish(e2 events.Event) {
	e2.Executor = e.id
	if e2.Time.IsZero() {
		e2.Time = time.Now()
	}
	e.sink.Publish(e2)
}

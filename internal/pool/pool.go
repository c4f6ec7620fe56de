// Package pool bounds the number of concurrently running child processes.
//
// A Pool owns a fixed set of logical workers. Submitting a command either
// dispatches it to an idle worker at once or queues it; a worker that
// finishes a job immediately takes the oldest queued job, so the queue is
// drained without polling. Parallel submissions may be spread across NUMA
// nodes, choosing the node at dispatch time.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"golang.org/x/sync/errgroup"
)

var poolSeq atomic.Uint64

// Pool is a fixed-size set of workers running process.Cmd jobs.
type Pool struct {
	id         string
	runner     process.Runner
	maxPerNuma int
	recorder   Recorder

	mu      sync.Mutex
	workers []*worker
	queue   []*job
	sched   *numa.Scheduler

	completed atomic.Uint64
	failed    atomic.Uint64
}

type worker struct {
	id   int
	busy bool
	node int
}

type job struct {
	ctx      context.Context
	cmd      process.Cmd
	sched    *numa.Scheduler
	future   *Future
	queuedAt time.Time
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	ID        string `json:"id"`
	Size      int    `json:"size"`
	Busy      int    `json:"busy"`
	Idle      int    `json:"idle"`
	Queued    int    `json:"queued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// New creates a pool with size workers, numbered from 0. A non-positive size
// is raised to 1.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		id:         fmt.Sprintf("pool-%d", poolSeq.Add(1)),
		runner:     process.NewExecRunner(nil, nil),
		maxPerNuma: numa.DefaultMaxWorkersPerNode,
		recorder:   nopRecorder{},
		workers:    make([]*worker, size),
	}
	for i := range p.workers {
		p.workers[i] = &worker{id: i, node: -1}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the pool label.
func (p *Pool) ID() string {
	return p.id
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Submit hands cmd to the pool and returns its pending result. The logger
// carried by ctx is used for the job's log lines.
func (p *Pool) Submit(ctx context.Context, cmd process.Cmd) *Future {
	return p.submit(ctx, cmd, nil)
}

// RunCommand submits cmd and waits for it.
func (p *Pool) RunCommand(ctx context.Context, cmd process.Cmd) (process.Output, error) {
	return p.Submit(ctx, cmd).Wait(ctx)
}

// RunParallel submits every command and waits for all of them. Outputs are
// returned in input order; failed commands carry Output.Err. The returned
// error is non-nil only when ctx is cancelled before every command
// completes.
//
// When useNuma is set, numaNodeCount is positive and there are at least as
// many commands as nodes, each command is bound to a node when a worker
// picks it up and the node is released when it exits.
func (p *Pool) RunParallel(ctx context.Context, cmds []process.Cmd, numaNodeCount int, useNuma bool) ([]process.Output, error) {
	logger := ctxlog.FromContext(ctx)

	var sched *numa.Scheduler
	if useNuma && numaNodeCount > 0 {
		s := p.numaScheduler(numaNodeCount)
		if s.ShouldUseNuma(len(cmds)) {
			sched = s
		} else {
			logger.Debug("Fewer jobs than NUMA nodes, dispatching without binding.", "jobs", len(cmds), "numa_nodes", numaNodeCount)
		}
	}

	futures := make([]*Future, len(cmds))
	for i, cmd := range cmds {
		futures[i] = p.submit(ctx, cmd, sched)
	}

	outputs := make([]process.Output, len(cmds))
	var g errgroup.Group
	for i, f := range futures {
		g.Go(func() error {
			out, err := f.Wait(ctx)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputs, err
	}
	return outputs, nil
}

// WorkerFreeStatus returns the sorted ids of idle workers.
func (p *Pool) WorkerFreeStatus() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := make([]int, 0, len(p.workers))
	for _, w := range p.workers {
		if !w.busy {
			free = append(free, w.id)
		}
	}
	sort.Ints(free)
	return free
}

// NumaStatus returns the current load of every NUMA node, or an empty map
// when no NUMA dispatch has happened yet.
func (p *Pool) NumaStatus() map[int]numa.NodeStatus {
	p.mu.Lock()
	sched := p.sched
	p.mu.Unlock()

	if sched == nil {
		return map[int]numa.NodeStatus{}
	}
	return sched.Status()
}

// Stats returns a snapshot of worker and queue state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := p.busyLocked()
	return Stats{
		ID:        p.id,
		Size:      len(p.workers),
		Busy:      busy,
		Idle:      len(p.workers) - busy,
		Queued:    len(p.queue),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// numaScheduler returns the scheduler for nodeCount nodes, replacing the
// current one when the topology changed. Jobs bound by a replaced scheduler
// release into it, so replacement never corrupts live counters.
func (p *Pool) numaScheduler(nodeCount int) *numa.Scheduler {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sched == nil || p.sched.TotalNodes() != nodeCount {
		p.sched = numa.New(nodeCount, p.maxPerNuma)
	}
	return p.sched
}

func (p *Pool) submit(ctx context.Context, cmd process.Cmd, sched *numa.Scheduler) *Future {
	f := newFuture()
	logger := ctxlog.FromContext(ctx).With("pool", p.id)

	if err := cmd.Validate(); err != nil {
		logger.Error("Rejecting invalid command.", "cmd", cmd.Name, "error", err)
		f.resolve(process.Output{Code: 1, Err: &process.Error{Cmd: cmd.Name, Code: 1, Cause: err}})
		return f
	}

	j := &job{ctx: ctx, cmd: cmd, sched: sched, future: f, queuedAt: time.Now()}

	p.mu.Lock()
	w := p.idleWorkerLocked()
	if w == nil {
		p.queue = append(p.queue, j)
		depth := len(p.queue)
		p.mu.Unlock()

		logger.Warn("No available workers, job queued.", "cmd", cmd.String(), "queued", depth)
		p.recorder.RecordQueueDepth(p.id, depth)
		return f
	}
	w.busy = true
	busy := p.busyLocked()
	p.mu.Unlock()

	p.recorder.RecordBusyWorkers(p.id, busy)
	go p.work(w, j)
	return f
}

// work runs j and then keeps draining the queue on the same worker.
func (p *Pool) work(w *worker, j *job) {
	for j != nil {
		p.run(w, j)
		j = p.next(w)
	}
}

// next frees w and, if a job is queued, claims it for w again.
func (p *Pool) next(w *worker) *job {
	p.mu.Lock()
	w.busy = false
	w.node = -1

	if len(p.queue) == 0 {
		busy := p.busyLocked()
		p.mu.Unlock()
		p.recorder.RecordBusyWorkers(p.id, busy)
		return nil
	}

	j := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	w.busy = true
	depth := len(p.queue)
	p.mu.Unlock()

	p.recorder.RecordQueueDepth(p.id, depth)
	return j
}

func (p *Pool) run(w *worker, j *job) {
	cmd := j.cmd
	node := -1
	if j.sched != nil {
		if n, ok := j.sched.Allocate(); ok {
			node = n
			cmd = cmd.WrapNuma(n)
		}
	}

	p.mu.Lock()
	w.node = node
	p.mu.Unlock()

	logger := ctxlog.FromContext(j.ctx).With("pool", p.id, "worker", w.id)
	if node >= 0 {
		logger = logger.With("numa_node", node)
	}
	if wait := time.Since(j.queuedAt); wait > time.Millisecond {
		logger.Debug("Job picked up from queue.", "waited", wait)
	}
	logger.Info("▶️ Starting process", "cmd", cmd.String())

	start := time.Now()
	out := p.runner.Run(j.ctx, cmd)
	elapsed := time.Since(start)

	if node >= 0 {
		j.sched.Release(node)
	}

	p.completed.Add(1)
	if out.Err != nil {
		p.failed.Add(1)
	}
	p.recorder.RecordJob(p.id, node, elapsed, out.Err != nil)
	logResult(logger, out, elapsed)

	j.future.resolve(out)
}

func logResult(logger *slog.Logger, out process.Output, elapsed time.Duration) {
	if out.Err != nil {
		logger.Error("❌ Process failed", "code", out.Code, "duration", elapsed, "error", out.Err)
		return
	}
	logger.Info("✅ Process finished", "code", out.Code, "duration", elapsed)
}

func (p *Pool) idleWorkerLocked() *worker {
	for _, w := range p.workers {
		if !w.busy {
			return w
		}
	}
	return nil
}

func (p *Pool) busyLocked() int {
	n := 0
	for _, w := range p.workers {
		if w.busy {
			n++
		}
	}
	return n
}

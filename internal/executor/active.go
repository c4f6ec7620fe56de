package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// execution is the registry entry of one plan run.
type execution struct {
	id      uint64
	plan    string
	started time.Time
	phase   atomic.Int32

	// finally closes over the run's state. nil when the plan has no hook.
	finally    func(ctx context.Context) error
	finallyRan sync.Once
	finallyErr error
}

func (x *execution) setPhase(p Phase) {
	x.phase.Store(int32(p))
}

func (x *execution) getPhase() Phase {
	return Phase(x.phase.Load())
}

// runFinally invokes the hook the first time it is called and returns the
// stored outcome on every later call. A panic in the hook becomes its error.
func (x *execution) runFinally(ctx context.Context) error {
	x.finallyRan.Do(func() {
		if x.finally == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				x.finallyErr = fmt.Errorf("finally of plan '%s' panicked: %v", x.plan, r)
			}
		}()
		x.finallyErr = x.finally(ctx)
	})
	return x.finallyErr
}

// ActivePlan describes a plan run that has not finished yet.
type ActivePlan struct {
	ExecutionID uint64    `json:"execution_id"`
	Plan        string    `json:"plan"`
	Phase       string    `json:"phase"`
	Started     time.Time `json:"started"`
}

func (e *Executor) register(name string, finally func(ctx context.Context) error) *execution {
	x := &execution{
		id:      e.planSeq.Add(1),
		plan:    name,
		started: time.Now(),
		finally: finally,
	}

	e.mu.Lock()
	e.active[x.id] = x
	e.mu.Unlock()
	return x
}

func (e *Executor) deregister(id uint64) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// activeSorted returns the live runs ordered by execution id.
func (e *Executor) activeSorted() []*execution {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := make([]*execution, 0, len(e.active))
	for _, x := range e.active {
		list = append(list, x)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

// ActivePlans returns the runs that have not finished yet.
func (e *Executor) ActivePlans() []ActivePlan {
	list := e.activeSorted()
	out := make([]ActivePlan, len(list))
	for i, x := range list {
		out[i] = ActivePlan{
			ExecutionID: x.id,
			Plan:        x.plan,
			Phase:       x.getPhase().String(),
			Started:     x.started,
		}
	}
	return out
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
)

// Execute runs the platform detection plan, then p with a fresh state seeded
// from the detected features, and returns p's result.
//
// The returned error is the first failure of p's own lifecycle: init, a
// stage, or then. An error from p's finally hook is logged and reported via
// the plan_finished event but never replaces the result.
func Execute[S, I, R any](ctx context.Context, e *Executor, p *plan.Plan[S, I, R], input I) (R, error) {
	var zero R
	if e.terminated.Load() {
		return zero, ErrTerminated
	}
	if p == nil {
		return zero, fmt.Errorf("%w: plan is nil", plan.ErrInvalidPlan)
	}
	if err := p.Validate(); err != nil {
		return zero, err
	}

	features, err := e.Detect(ctx)
	if err != nil {
		return zero, err
	}
	if e.terminated.Load() {
		return zero, ErrTerminated
	}
	return run(ctx, e, p, p.NewState(features), input, features)
}

// Detect runs only the platform detection plan.
func (e *Executor) Detect(ctx context.Context) (*platform.Features, error) {
	if e.terminated.Load() {
		return nil, ErrTerminated
	}
	det := e.detection()
	if err := det.Validate(); err != nil {
		return nil, err
	}
	state := det.NewState(&platform.Features{})
	features, err := run(ctx, e, det, state, struct{}{}, state)
	if err != nil {
		return nil, fmt.Errorf("platform feature detection failed: %w", err)
	}
	return features, nil
}

// run drives one plan through its lifecycle. features decides NUMA dispatch
// for parallel stages.
func run[S, I, R any](ctx context.Context, e *Executor, p *plan.Plan[S, I, R], state S, input I, features *platform.Features) (result R, err error) {
	var finally func(context.Context) error
	if p.Finally != nil {
		finally = func(ctx context.Context) error { return p.Finally(ctx, state) }
	}
	x := e.register(p.Name, finally)

	logger := ctxlog.FromContext(ctx).With("executor", e.id, "plan", p.Name, "execution_id", x.id)
	ctx = ctxlog.WithLogger(ctx, logger)
	started := time.Now()

	logger.Info("🚀 Plan started.", "stages", len(p.Stages))
	e.publish(events.Event{Kind: events.PlanStarted, Plan: p.Name, ExecutionID: x.id})

	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = fmt.Errorf("plan '%s' panicked: %v", p.Name, r)
		}
		e.finish(ctx, x, started, err)
	}()

	x.setPhase(Initializing)
	if p.Init != nil {
		if err := p.Init(ctx, state, input); err != nil {
			return result, fmt.Errorf("init of plan '%s' failed: %w", p.Name, err)
		}
	}

	x.setPhase(Running)
	for i, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("plan '%s' cancelled before stage '%s': %w", p.Name, stage.Name, err)
		}
		if err := runStage(ctx, e, x, i, stage, state, features); err != nil {
			return result, err
		}
	}

	x.setPhase(Collecting)
	result, err = p.Then(ctx, state)
	if err != nil {
		return result, fmt.Errorf("then of plan '%s' failed: %w", p.Name, err)
	}
	return result, nil
}

// finish runs the finally hook, records the final phase and deregisters the
// run. The hook gets a context that outlives cancellation of ctx.
func (e *Executor) finish(ctx context.Context, x *execution, started time.Time, runErr error) {
	logger := ctxlog.FromContext(ctx)
	defer e.deregister(x.id)
	x.setPhase(Finalizing)

	finallyErr := x.runFinally(context.WithoutCancel(ctx))
	if finallyErr != nil {
		logger.Error("Finally hook failed, resources may have leaked.", "error", finallyErr)
	}

	phase := Succeeded
	switch {
	case runErr != nil:
		phase = Failed
	case finallyErr != nil:
		phase = SucceededWithCleanupFailure
	}
	x.setPhase(phase)

	elapsed := time.Since(started)
	ev := events.Event{
		Kind:        events.PlanFinished,
		Plan:        x.plan,
		ExecutionID: x.id,
		Status:      phase.String(),
		Duration:    elapsed,
	}
	if err := errors.Join(runErr, finallyErr); err != nil {
		ev.Error = err.Error()
	}

	if runErr != nil {
		logger.Error("❌ Plan failed.", "duration", elapsed, "error", runErr)
	} else {
		logger.Info("🏁 Plan finished.", "status", phase.String(), "duration", elapsed)
	}
	e.publish(ev)
}

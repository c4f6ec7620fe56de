package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
)

func runStage[S any](ctx context.Context, e *Executor, x *execution, index int, stage plan.Stage[S], state S, features *platform.Features) error {
	logger := ctxlog.FromContext(ctx).With("stage", stage.Name, "stage_index", index, "stage_kind", stage.Kind.String())
	ctx = ctxlog.WithLogger(ctx, logger)
	base := events.Event{
		Plan:        x.plan,
		ExecutionID: x.id,
		Stage:       stage.Name,
		StageIndex:  index,
		StageKind:   stage.Kind.String(),
	}

	if stage.Prerequisite != nil {
		ok, err := stage.Prerequisite(ctx, state)
		if err != nil {
			return fmt.Errorf("prerequisite of stage '%s' failed: %w", stage.Name, err)
		}
		if !ok {
			logger.Info("⏭️ Skipping stage, prerequisite not met.")
			ev := base
			ev.Kind = events.StageSkipped
			e.publish(ev)
			return nil
		}
	}

	logger.Info("▶️ Starting stage.")
	ev := base
	ev.Kind = events.StageStarted
	e.publish(ev)
	started := time.Now()

	var err error
	switch stage.Kind {
	case plan.MainThread:
		err = stage.Execute(ctx, state)
	case plan.SerialCmd:
		err = runSerial(ctx, e, stage, state)
	case plan.ParallelCmd:
		err = runParallel(ctx, e, stage, state, features)
	default:
		err = fmt.Errorf("%w: %s", plan.ErrUnknownStageType, stage.Kind)
	}

	ev = base
	ev.Kind = events.StageFinished
	ev.Duration = time.Since(started)
	if err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
		e.publish(ev)
		logger.Error("❌ Stage failed.", "duration", ev.Duration, "error", err)
		return fmt.Errorf("stage '%s' failed: %w", stage.Name, err)
	}
	ev.Status = "succeeded"
	e.publish(ev)
	logger.Info("✅ Stage finished.", "duration", ev.Duration)
	return nil
}

// runSerial runs one command. With an OnResult callback the output is handed
// over even on failure and the callback decides; without one a failure
// aborts the plan.
func runSerial[S any](ctx context.Context, e *Executor, stage plan.Stage[S], state S) error {
	cmd, err := stage.Cmd.Resolve(state)
	if err != nil {
		return fmt.Errorf("resolving command: %w", err)
	}

	out, err := e.pool.RunCommand(ctx, cmd)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if stage.OnResult != nil {
		return stage.OnResult(ctx, state, out)
	}
	return err
}

// runParallel runs every command through the pool and hands the outputs over
// in command order. NUMA binding needs both the stage flag and known nodes.
func runParallel[S any](ctx context.Context, e *Executor, stage plan.Stage[S], state S, features *platform.Features) error {
	cmds, err := stage.Cmds.Resolve(state)
	if err != nil {
		return fmt.Errorf("resolving commands: %w", err)
	}

	nodes := 0
	useNuma := false
	if features != nil && features.HasNuma() {
		nodes, _ = features.NodeCount()
		useNuma = stage.NumaOptimized
	}

	outs, err := e.pool.RunParallel(ctx, cmds, nodes, useNuma)
	if err != nil {
		return err
	}
	if stage.OnResults != nil {
		return stage.OnResults(ctx, state, outs)
	}
	for i, out := range outs {
		if out.Err != nil {
			return fmt.Errorf("command %d of %d: %w", i+1, len(outs), out.Err)
		}
	}
	return nil
}

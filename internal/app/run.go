package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/hclplan"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrUnknownPlan is returned when the requested plan is not registered.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrInterrupted is returned when ctx is cancelled while the plan runs,
	// typically by SIGINT or SIGTERM.
	ErrInterrupted = errors.New("interrupted")
)

type outcome struct {
	result cty.Value
	err    error
}

// Run executes the configured plan against the input file and writes the
// result. Cancelling ctx terminates the executor, which runs the finally
// hooks of every active plan before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	p, ok := a.registry.Plan(a.config.PlanName)
	if !ok {
		return fmt.Errorf("%w '%s'. Available plans: %s", ErrUnknownPlan, a.config.PlanName, strings.Join(a.registry.PlanNames(), ", "))
	}

	input, err := a.readInput()
	if err != nil {
		return err
	}

	if a.config.StatusPort > 0 {
		a.startStatusServer()
		defer a.closeStatusServer()
	}

	a.logger.Info("🚀 Running plan.", "plan", p.Name(), "input", a.config.InputPath, "workers", a.config.WorkerCount)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan outcome, 1)
	go func() {
		result, err := p.Run(runCtx, a.executor, input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return fmt.Errorf("plan '%s' failed: %w", p.Name(), o.err)
		}
		if err := a.writeResult(o.result); err != nil {
			return err
		}
		a.logger.Info("🏁 Plan finished.", "plan", p.Name())
		return nil
	case <-ctx.Done():
		a.logger.Warn("🛑 Interrupted, terminating executor.", "plan", p.Name(), "cause", context.Cause(ctx))
		cancel()
		termErr := a.executor.Terminate(context.WithoutCancel(ctx))
		return errors.Join(fmt.Errorf("plan '%s': %w", p.Name(), ErrInterrupted), termErr)
	}
}

func (a *App) readInput() (cty.Value, error) {
	if a.config.InputPath == "" {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	data, err := os.ReadFile(a.config.InputPath)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to read input: %w", err)
	}
	input, err := hclplan.DecodeDocument(data)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to decode input %s: %w", a.config.InputPath, err)
	}
	a.logger.Debug("Input decoded.", "path", a.config.InputPath, "bytes", len(data))
	return input, nil
}

func (a *App) writeResult(result cty.Value) error {
	data, err := hclplan.EncodeJSON(result)
	if err != nil {
		return err
	}
	if a.config.OutputPath == "" {
		_, err := a.resultW.Write(data)
		return err
	}
	if err := os.WriteFile(a.config.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	a.logger.Info("✅ Result written.", "path", a.config.OutputPath, "bytes", len(data))
	return nil
}

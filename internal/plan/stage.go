package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/proofgridgo/internal/process"
)

// Stage is one step of a plan. Which fields apply depends on Kind:
// MainThread uses Execute; SerialCmd uses Cmd and OnResult; ParallelCmd uses
// Cmds, OnResults and NumaOptimized.
type Stage[S any] struct {
	Kind Kind
	Name string

	// Prerequisite, when set and false, skips the stage.
	Prerequisite func(ctx context.Context, state S) (bool, error)

	Execute func(ctx context.Context, state S) error

	Cmd Source[S, process.Cmd]
	// OnResult receives the output even when the command failed. Without it a
	// failed command aborts the plan.
	OnResult func(ctx context.Context, state S, out process.Output) error

	Cmds Source[S, []process.Cmd]
	// OnResults receives every output in command order, failures included.
	// Without it the first failed command aborts the plan.
	OnResults     func(ctx context.Context, state S, outs []process.Output) error
	NumaOptimized bool
}

// NewMainThread builds a main-thread stage.
func NewMainThread[S any](name string, execute func(ctx context.Context, state S) error) Stage[S] {
	return Stage[S]{Kind: MainThread, Name: name, Execute: execute}
}

// NewSerial builds a serial-cmd stage. onResult may be nil.
func NewSerial[S any](name string, cmd Source[S, process.Cmd], onResult func(ctx context.Context, state S, out process.Output) error) Stage[S] {
	return Stage[S]{Kind: SerialCmd, Name: name, Cmd: cmd, OnResult: onResult}
}

// NewParallel builds a parallel-cmd stage. onResults may be nil.
func NewParallel[S any](name string, cmds Source[S, []process.Cmd], onResults func(ctx context.Context, state S, outs []process.Output) error) Stage[S] {
	return Stage[S]{Kind: ParallelCmd, Name: name, Cmds: cmds, OnResults: onResults}
}

// When returns a copy of the stage gated by the given prerequisite.
func (s Stage[S]) When(prerequisite func(ctx context.Context, state S) (bool, error)) Stage[S] {
	s.Prerequisite = prerequisite
	return s
}

// Numa returns a copy of the stage with NUMA-aware dispatch enabled.
func (s Stage[S]) Numa() Stage[S] {
	s.NumaOptimized = true
	return s
}

// Validate checks that the fields required by the stage kind are present.
// Unknown kinds are not reported here; they fail when executed.
func (s Stage[S]) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("stage name must not be empty"))
	}
	switch s.Kind {
	case MainThread:
		if s.Execute == nil {
			errs = append(errs, fmt.Errorf("main-thread stage '%s' has no execute function", s.Name))
		}
	case SerialCmd:
		if !s.Cmd.IsSet() {
			errs = append(errs, fmt.Errorf("serial-cmd stage '%s' has no command", s.Name))
		}
	case ParallelCmd:
		if !s.Cmds.IsSet() {
			errs = append(errs, fmt.Errorf("parallel-cmd stage '%s' has no commands", s.Name))
		}
	}
	return errors.Join(errs...)
}

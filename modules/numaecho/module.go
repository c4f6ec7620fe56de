// Package numaecho provides a built-in plan that checks NUMA-aware dispatch
// end to end by fanning echo commands out over the pool.
package numaecho

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/specialistvlad/proofgridgo/internal/registry"
)

// PlanName is the name the plan is registered under.
const PlanName = "numa_echo"

// DefaultCount is how many echo commands run when the input does not say.
const DefaultCount = 10

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the plan with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlan(registry.PlanOf(New(), "Runs echo commands in a NUMA-optimised parallel stage and returns their output in order."))
}

// Input optionally overrides the number of commands.
type Input struct {
	Count *int `cty:"count"`
}

// Result holds the trimmed stdout of every command, in command order.
type Result struct {
	Output []string `cty:"output"`
}

// State is the per-execution state of the plan.
type State struct {
	*platform.Features
	Count  int
	Output []string
}

// New builds the numa_echo plan.
func New() *plan.Plan[*State, Input, Result] {
	return &plan.Plan[*State, Input, Result]{
		Name: PlanName,
		NewState: func(f *platform.Features) *State {
			return &State{Features: f, Count: DefaultCount}
		},
		Init: func(_ context.Context, s *State, in Input) error {
			if in.Count != nil {
				if *in.Count < 1 {
					return fmt.Errorf("count must be positive, got %d", *in.Count)
				}
				s.Count = *in.Count
			}
			s.Output = []string{}
			return nil
		},
		Stages: []plan.Stage[*State]{
			plan.NewParallel("ScaledNumaEcho", plan.Computed(Commands), collect).Numa(),
		},
		Then: func(_ context.Context, s *State) (Result, error) {
			return Result{Output: s.Output}, nil
		},
	}
}

// Commands returns one echo per requested command.
func Commands(s *State) ([]process.Cmd, error) {
	cmds := make([]process.Cmd, s.Count)
	for i := range cmds {
		cmds[i] = process.Cmd{
			Name:    "echo",
			Args:    []string{fmt.Sprintf("Command%d", i)},
			Capture: true,
		}
	}
	return cmds, nil
}

func collect(_ context.Context, s *State, outs []process.Output) error {
	s.Output = make([]string, len(outs))
	for i, out := range outs {
		if out.Err != nil {
			return fmt.Errorf("echo %d failed: %w", i, out.Err)
		}
		s.Output[i] = strings.TrimRight(out.Stdout, "\n")
	}
	return nil
}

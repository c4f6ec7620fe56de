package builder

import (
	"context"
	"fmt"

	"github.com/specialistvlad/proofgridgo/internal/config"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func buildStage(sd *config.Stage, h registry.Handler) (plan.Stage[*State], error) {
	kind, err := plan.ParseKind(sd.Kind)
	if err != nil {
		return plan.Stage[*State]{}, err
	}

	var st plan.Stage[*State]
	switch kind {
	case plan.MainThread:
		if sd.Call == nil {
			return st, fmt.Errorf("main-thread stage has no handler")
		}
		st = plan.NewMainThread(sd.Name, func(ctx context.Context, s *State) error {
			return call(ctx, sd.Call, h, s)
		})
	case plan.SerialCmd:
		if sd.Command == nil {
			return st, fmt.Errorf("serial-cmd stage has no command")
		}
		spec := &commandSpec{def: sd.Command}
		st = plan.NewSerial(sd.Name,
			plan.Computed(func(s *State) (process.Cmd, error) {
				return evalCommand(spec, s, cty.NilVal)
			}),
			func(_ context.Context, s *State, out process.Output) error {
				if out.Err != nil && !sd.AllowFailure {
					return out.Err
				}
				s.Set(sd.Into, OutputValue(out))
				return nil
			},
		)
	case plan.ParallelCmd:
		if sd.Command == nil {
			return st, fmt.Errorf("parallel-cmd stage has no command")
		}
		spec := &commandSpec{def: sd.Command}
		st = plan.NewParallel(sd.Name,
			plan.Computed(func(s *State) ([]process.Cmd, error) {
				return expandCommands(spec, sd, s)
			}),
			func(_ context.Context, s *State, outs []process.Output) error {
				results := make([]cty.Value, len(outs))
				for i, out := range outs {
					if out.Err != nil && !sd.AllowFailure {
						return fmt.Errorf("command %d of %d: %w", i+1, len(outs), out.Err)
					}
					results[i] = OutputValue(out)
				}
				if len(results) == 0 {
					s.Set(sd.Into, cty.EmptyTupleVal)
				} else {
					s.Set(sd.Into, cty.TupleVal(results))
				}
				return nil
			},
		)
		if sd.Numa {
			st = st.Numa()
		}
	}

	if sd.When != nil {
		when := sd.When
		st = st.When(func(_ context.Context, s *State) (bool, error) {
			return evalBool(when, evalContext(s, cty.NilVal), false)
		})
	}
	return st, nil
}

func expandCommands(spec *commandSpec, sd *config.Stage, s *State) ([]process.Cmd, error) {
	if sd.ForEach == nil {
		cmd, err := evalCommand(spec, s, cty.NilVal)
		if err != nil {
			return nil, err
		}
		return []process.Cmd{cmd}, nil
	}

	v, err := eval(sd.ForEach, evalContext(s, cty.NilVal))
	if err != nil {
		return nil, fmt.Errorf("for_each: %w", err)
	}
	elems, err := eachElements(v)
	if err != nil {
		return nil, err
	}
	cmds := make([]process.Cmd, len(elems))
	for i, each := range elems {
		cmd, err := evalCommand(spec, s, each)
		if err != nil {
			return nil, fmt.Errorf("for_each element %d: %w", i, err)
		}
		cmds[i] = cmd
	}
	return cmds, nil
}

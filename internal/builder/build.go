package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/proofgridgo/internal/config"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Plan is the type of every compiled declarative plan.
type Plan = plan.Plan[*State, cty.Value, cty.Value]

// HandlerLookup resolves handler names. *registry.Registry implements it.
type HandlerLookup interface {
	Handler(name string) (registry.Handler, bool)
}

type commandSpec struct {
	def *config.Command
}

// Build compiles def. Every handler it names must be known to handlers.
func Build(def *config.Plan, handlers HandlerLookup) (*Plan, error) {
	var errs []error
	resolve := func(where string, c *config.Call) registry.Handler {
		if c == nil {
			return nil
		}
		h, ok := handlers.Handler(c.Handler)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unknown handler '%s'", where, c.Handler))
		}
		return h
	}

	initHandler := resolve("init", def.Init)
	finallyHandler := resolve("finally", def.Finally)

	stages := make([]plan.Stage[*State], 0, len(def.Stages))
	for i, sd := range def.Stages {
		st, err := buildStage(sd, resolve(fmt.Sprintf("stage %d '%s'", i, sd.Name), sd.Call))
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %d '%s': %w", i, sd.Name, err))
			continue
		}
		stages = append(stages, st)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w '%s': %w", plan.ErrInvalidPlan, def.Name, errors.Join(errs...))
	}

	p := &Plan{
		Name:     def.Name,
		Stages:   stages,
		NewState: NewState,
		Init: func(ctx context.Context, s *State, input cty.Value) error {
			if input != cty.NilVal {
				s.Input = input
			}
			if def.Init == nil {
				return nil
			}
			return call(ctx, def.Init, initHandler, s)
		},
		Then: func(_ context.Context, s *State) (cty.Value, error) {
			if def.Output == nil {
				return s.VarsValue(), nil
			}
			return eval(def.Output, evalContext(s, cty.NilVal))
		},
	}
	if def.Finally != nil {
		p.Finally = func(ctx context.Context, s *State) error {
			return call(ctx, def.Finally, finallyHandler, s)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// call evaluates the arguments, runs the handler and captures the result.
func call(ctx context.Context, c *config.Call, h registry.Handler, s *State) error {
	args, err := eval(c.Args, evalContext(s, cty.NilVal))
	if err != nil {
		return fmt.Errorf("arguments of handler '%s': %w", c.Handler, err)
	}
	result, err := h(ctx, args)
	if err != nil {
		return fmt.Errorf("handler '%s': %w", c.Handler, err)
	}
	s.Set(c.Into, result)
	return nil
}

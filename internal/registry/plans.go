package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/proofgridgo/internal/executor"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/zclconf/go-cty/cty"
)

// Runnable is a plan the CLI can run by name. Input and result cross the
// boundary as cty values so plans of any Go type can be driven from files.
type Runnable interface {
	Name() string
	Description() string
	Stages() []plan.StageInfo
	Validate() error
	Run(ctx context.Context, e *executor.Executor, input cty.Value) (cty.Value, error)
}

type goPlan[S, I, R any] struct {
	p           *plan.Plan[S, I, R]
	description string
}

// PlanOf wraps a typed Go plan. The input is decoded into I with gocty, and
// the result encoded back; an I or R of cty.Value is passed through as is.
func PlanOf[S, I, R any](p *plan.Plan[S, I, R], description string) Runnable {
	return &goPlan[S, I, R]{p: p, description: description}
}

func (g *goPlan[S, I, R]) Name() string             { return g.p.Name }
func (g *goPlan[S, I, R]) Description() string      { return g.description }
func (g *goPlan[S, I, R]) Stages() []plan.StageInfo { return g.p.Describe() }
func (g *goPlan[S, I, R]) Validate() error          { return g.p.Validate() }

func (g *goPlan[S, I, R]) Run(ctx context.Context, e *executor.Executor, input cty.Value) (cty.Value, error) {
	var in I
	if err := decodeInput(input, &in); err != nil {
		return cty.NilVal, fmt.Errorf("invalid input for plan '%s': %w", g.p.Name, err)
	}

	result, err := executor.Execute(ctx, e, g.p, in)
	if err != nil {
		return cty.NilVal, err
	}
	return EncodeValue(result)
}

func decodeInput(input cty.Value, target any) error {
	if v, ok := target.(*cty.Value); ok {
		*v = input
		return nil
	}
	if input.IsNull() {
		return nil
	}
	return DecodeArgs(input, target)
}

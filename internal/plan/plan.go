// Package plan defines computation plans: a named, ordered list of typed
// stages over a plan-private state, with init, then and finally hooks.
//
// S is the mutable state created fresh for every execution, I the input and
// R the result. The state is seeded from the detected platform features and
// is only touched by the stages and hooks of its own execution.
package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/proofgridgo/internal/platform"
)

var (
	// ErrUnknownStageType is returned when a stage carries an unrecognised
	// Kind. It aborts the plan.
	ErrUnknownStageType = errors.New("unknown stage type")
	// ErrInvalidPlan wraps every plan validation failure.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Plan is a computation plan.
type Plan[S, I, R any] struct {
	Name   string
	Stages []Stage[S]

	// NewState creates the execution state around the detected features.
	// The features pointer must be kept by the state, so later stages observe
	// the same object the detection plan produced.
	NewState func(features *platform.Features) S

	// Init runs before the first stage.
	Init func(ctx context.Context, state S, input I) error
	// Then reduces the final state into the result. It is required.
	Then func(ctx context.Context, state S) (R, error)
	// Finally always runs once the plan stops, whatever the outcome. Its
	// error is reported but never replaces the plan's own outcome.
	Finally func(ctx context.Context, state S) error
}

// Validate reports every structural problem at once.
func (p *Plan[S, I, R]) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("plan name must not be empty"))
	}
	if p.NewState == nil {
		errs = append(errs, errors.New("NewState is required"))
	}
	if p.Then == nil {
		errs = append(errs, errors.New("Then is required"))
	}
	for i, stage := range p.Stages {
		if err := stage.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stage %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w '%s': %w", ErrInvalidPlan, p.Name, errors.Join(errs...))
	}
	return nil
}

// StageInfo describes a stage for listings.
type StageInfo struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Conditional   bool   `json:"conditional,omitempty"`
	NumaOptimized bool   `json:"numa_optimized,omitempty"`
}

// Describe lists the stages of the plan in order.
func (p *Plan[S, I, R]) Describe() []StageInfo {
	infos := make([]StageInfo, len(p.Stages))
	for i, s := range p.Stages {
		infos[i] = StageInfo{
			Name:          s.Name,
			Kind:          s.Kind.String(),
			Conditional:   s.Prerequisite != nil,
			NumaOptimized: s.NumaOptimized,
		}
	}
	return infos
}

// Package hostinfo provides the built-in plan that reports what the
// detection plan found on this host.
package hostinfo

import (
	"context"

	"github.com/specialistvlad/proofgridgo/internal/builder"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// PlanName is the name the plan is registered under.
const PlanName = "platform_features"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the plan with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlan(registry.PlanOf(New(), "Reports the detected OS, kernel and NUMA topology."))
}

// New builds the platform_features plan. It has no stages of its own; the
// detection plan that precedes every execution does the work.
func New() *plan.Plan[*platform.Features, cty.Value, cty.Value] {
	return &plan.Plan[*platform.Features, cty.Value, cty.Value]{
		Name: PlanName,
		NewState: func(f *platform.Features) *platform.Features {
			if f == nil {
				return &platform.Features{}
			}
			return f
		},
		Then: func(_ context.Context, f *platform.Features) (cty.Value, error) {
			return builder.PlatformValue(f), nil
		},
	}
}

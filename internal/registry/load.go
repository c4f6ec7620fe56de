package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/proofgridgo/internal/config"
	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
)

// Compiler turns a declarative plan definition into a Runnable. It may look
// up handlers in the registry.
type Compiler func(def *config.Plan, r *Registry) (Runnable, error)

// LoadPlans loads every declarative plan under paths, compiles it and adds
// it to the registry.
func (r *Registry) LoadPlans(ctx context.Context, loader config.Loader, compile Compiler, paths ...string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading plan definitions...", "paths", paths)

	model, err := loader.Load(ctx, paths...)
	if err != nil {
		return err
	}
	if len(model.Plans) == 0 {
		logger.Debug("No declarative plans found.", "paths", paths)
		return nil
	}

	for _, name := range model.Names() {
		def := model.Plans[name]
		p, err := compile(def, r)
		if err != nil {
			return fmt.Errorf("failed to compile plan '%s' from %s: %w", name, def.Source, err)
		}
		if err := r.AddPlan(p); err != nil {
			return fmt.Errorf("%s: %w", def.Source, err)
		}
		logger.Debug("Loaded declarative plan.", "plan", name, "file", def.Source)
	}

	logger.Info("Registry loaded declarative plans.", "plans_loaded", len(model.Plans))
	return nil
}

package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
)

// Validate checks every registered plan and reports all problems at once.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var errs []string
	for _, name := range r.PlanNames() {
		if err := r.plans[name].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("plan '%s': %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validated.", "plans", len(r.plans), "handlers", len(r.handlers))
	return nil
}

package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the handlers and plans of a single application instance.
type Registry struct {
	handlers map[string]Handler
	plans    map[string]Runnable
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		plans:    make(map[string]Runnable),
	}
}

// RegisterPlan adds a built-in plan. A duplicate name is a programming
// error and panics.
func (r *Registry) RegisterPlan(p Runnable) {
	if err := r.AddPlan(p); err != nil {
		panic(err.Error())
	}
}

// AddPlan adds a plan, failing on a duplicate name.
func (r *Registry) AddPlan(p Runnable) error {
	if _, exists := r.plans[p.Name()]; exists {
		return fmt.Errorf("plan with name '%s' already registered", p.Name())
	}
	slog.Debug("Registering plan.", "name", p.Name())
	r.plans[p.Name()] = p
	return nil
}

// Plan looks up a plan by name.
func (r *Registry) Plan(name string) (Runnable, bool) {
	p, ok := r.plans[name]
	return p, ok
}

// PlanNames returns every plan name in sorted order.
func (r *Registry) PlanNames() []string {
	names := make([]string, 0, len(r.plans))
	for name := range r.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Handler is a named Go function callable from declarative plans. args is
// the evaluated `args` expression, or a null value when it was omitted.
type Handler func(ctx context.Context, args cty.Value) (cty.Value, error)

// RegisterHandler registers a handler under name.
func (r *Registry) RegisterHandler(name string, h Handler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	slog.Debug("Registering handler.", "name", name)
	r.handlers[name] = h
}

// Handler looks up a handler by name.
func (r *Registry) Handler(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// HandlerNames returns every handler name in sorted order.
func (r *Registry) HandlerNames() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

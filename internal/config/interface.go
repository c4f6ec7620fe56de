package config

import "context"

// Loader is the interface for a format-specific plan loader.
type Loader interface {
	// Load reads every plan definition found under paths and translates it
	// into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

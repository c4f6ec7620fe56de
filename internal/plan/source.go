package plan

// Source is a stage field that is either a fixed value or computed from the
// plan state when the stage starts. Computed sources are evaluated once per
// stage entry and never cached.
type Source[S, T any] struct {
	value    T
	compute  func(S) (T, error)
	computed bool
	set      bool
}

// Static returns a source that always yields v.
func Static[S, T any](v T) Source[S, T] {
	return Source[S, T]{value: v, set: true}
}

// Computed returns a source that calls fn with the current state.
func Computed[S, T any](fn func(S) (T, error)) Source[S, T] {
	return Source[S, T]{compute: fn, computed: true, set: fn != nil}
}

// Resolve produces the value for the given state.
func (s Source[S, T]) Resolve(state S) (T, error) {
	if s.computed {
		return s.compute(state)
	}
	return s.value, nil
}

// IsSet reports whether the source was initialised.
func (s Source[S, T]) IsSet() bool {
	return s.set
}

// IsComputed reports whether the value depends on the state.
func (s Source[S, T]) IsComputed() bool {
	return s.computed
}

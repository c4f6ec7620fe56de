package pool

import (
	"context"
	"sync"

	"github.com/specialistvlad/proofgridgo/internal/process"
)

// Future is the pending result of a submitted command. It resolves exactly
// once; later resolutions are ignored.
type Future struct {
	once sync.Once
	done chan struct{}
	out  process.Output
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(out process.Output) {
	f.once.Do(func() {
		f.out = out
		close(f.done)
	})
}

// Done is closed once the command has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the command completes or ctx is cancelled. A failed
// command returns its Output together with Output.Err. Cancelling ctx stops
// the wait only; the command keeps its worker until it exits.
func (f *Future) Wait(ctx context.Context) (process.Output, error) {
	select {
	case <-f.done:
		return f.out, f.out.Err
	case <-ctx.Done():
		return process.Output{}, ctx.Err()
	}
}

// Output returns the result if the command has completed.
func (f *Future) Output() (process.Output, bool) {
	select {
	case <-f.done:
		return f.out, true
	default:
		return process.Output{}, false
	}
}

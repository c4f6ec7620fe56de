package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Runner executes a command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) Output
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Cmd) Output

// Run calls f(ctx, cmd).
func (f RunnerFunc) Run(ctx context.Context, cmd Cmd) Output {
	return f(ctx, cmd)
}

// ExecRunner starts commands as OS child processes.
//
// The context is not used to kill the child: a started process always runs
// to completion and keeps its pool slot until it exits.
type ExecRunner struct {
	// Stdout and Stderr receive emitted output. They default to the
	// process's own stdout and stderr.
	Stdout io.Writer
	Stderr io.Writer

	mu sync.Mutex
}

// NewExecRunner creates a runner that emits to the given writers. Nil
// writers fall back to os.Stdout and os.Stderr.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	return &ExecRunner{Stdout: stdout, Stderr: stderr}
}

// Run starts cmd and waits for it to exit.
func (r *ExecRunner) Run(_ context.Context, cmd Cmd) Output {
	c := exec.Command(cmd.Name, cmd.Args...)

	var stdout, stderr bytes.Buffer
	switch {
	case cmd.Capture && cmd.Emit:
		// Both streams are mirrored to stdout, like an attached terminal.
		emitW := r.lockedWriter(r.stdout())
		c.Stdout = io.MultiWriter(&stdout, emitW)
		c.Stderr = io.MultiWriter(&stderr, emitW)
	case cmd.Capture:
		c.Stdout = &stdout
		c.Stderr = &stderr
	case cmd.Emit:
		c.Stdout = r.stdout()
		c.Stderr = r.stderr()
	}

	if err := c.Start(); err != nil {
		return Output{
			Code: 1,
			Err:  &Error{Cmd: cmd.String(), Code: 1, Cause: err},
		}
	}

	waitErr := c.Wait()
	out := Output{
		Code:   c.ProcessState.ExitCode(),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if waitErr == nil && out.Code == 0 {
		return out
	}
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// The child ran but its output could not be copied.
		if out.Code == 0 {
			out.Code = 1
		}
		out.Stderr += waitErr.Error()
	}
	out.Err = &Error{Cmd: cmd.String(), Code: out.Code, Stdout: out.Stdout, Stderr: out.Stderr}
	return out
}

func (r *ExecRunner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *ExecRunner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// lockedWriter serializes writes from the two copy goroutines exec starts
// when both streams share one destination.
func (r *ExecRunner) lockedWriter(w io.Writer) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return w.Write(p)
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

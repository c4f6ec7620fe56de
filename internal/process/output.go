package process

import (
	"errors"
	"fmt"
	"strings"
)

// Output is the result of one completed invocation.
type Output struct {
	Code   int
	Stdout string
	Stderr string
	// Err is set when the child failed to start or exited with a non-zero code.
	// It is always a *Error in that case.
	Err error
}

// Failed reports whether the invocation did not succeed.
func (o Output) Failed() bool {
	return o.Err != nil
}

// Error is returned for spawn failures and non-zero exits. It carries the
// same fields as the Output it was created with.
type Error struct {
	Cmd    string
	Code   int
	Stdout string
	Stderr string
	// Cause is the OS error when the process could not be started.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("command '%s' failed to start: %v", e.Cmd, e.Cause)
	}
	msg := fmt.Sprintf("command '%s' exited with code %d", e.Cmd, e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	return msg
}

// Unwrap exposes the spawn cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// SpawnFailed reports whether the process never started.
func (e *Error) SpawnFailed() bool {
	return e.Cause != nil
}

// ExitCode extracts the exit code from err when it wraps a *Error.
func ExitCode(err error) (int, bool) {
	var procErr *Error
	if errors.As(err, &procErr) {
		return procErr.Code, true
	}
	return 0, false
}

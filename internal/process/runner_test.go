package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// --- Arrange ---
	runner := NewExecRunner(nil, nil)
	cmd := Cmd{Name: "sh", Args: []string{"-c", "echo out; echo err 1>&2"}, Capture: true}

	// --- Act ---
	out := runner.Run(context.Background(), cmd)

	// --- Assert ---
	require.NoError(t, out.Err)
	assert.Equal(t, 0, out.Code)
	assert.Equal(t, "out\n", out.Stdout)
	assert.Equal(t, "err\n", out.Stderr)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// --- Arrange ---
	runner := NewExecRunner(nil, nil)
	cmd := Cmd{Name: "sh", Args: []string{"-c", "echo boom 1>&2; exit 2"}, Capture: true}

	// --- Act ---
	out := runner.Run(context.Background(), cmd)

	// --- Assert ---
	require.Error(t, out.Err)
	assert.Equal(t, 2, out.Code)
	assert.Equal(t, "boom\n", out.Stderr)

	var procErr *Error
	require.True(t, errors.As(out.Err, &procErr))
	assert.Equal(t, 2, procErr.Code)
	assert.False(t, procErr.SpawnFailed())
	assert.Contains(t, procErr.Error(), "exited with code 2: boom")

	code, ok := ExitCode(out.Err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
}

func TestExecRunner_SpawnFailure(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	runner := NewExecRunner(nil, nil)
	cmd := Cmd{Name: "definitely-not-a-real-binary-proofgrid", Capture: true}

	// --- Act ---
	out := runner.Run(context.Background(), cmd)

	// --- Assert ---
	require.Error(t, out.Err)
	assert.Equal(t, 1, out.Code)

	var procErr *Error
	require.True(t, errors.As(out.Err, &procErr))
	assert.True(t, procErr.SpawnFailed())
	assert.True(t, errors.Is(out.Err, exec.ErrNotFound))
}

func TestExecRunner_EmitWithoutCapture(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// --- Arrange ---
	var stdout, stderr bytes.Buffer
	runner := NewExecRunner(&stdout, &stderr)
	cmd := Cmd{Name: "sh", Args: []string{"-c", "echo visible; echo warn 1>&2"}, Emit: true}

	// --- Act ---
	out := runner.Run(context.Background(), cmd)

	// --- Assert ---
	require.NoError(t, out.Err)
	assert.Empty(t, out.Stdout, "output is not captured without Capture")
	assert.Equal(t, "visible\n", stdout.String())
	assert.Equal(t, "warn\n", stderr.String())
}

func TestExecRunner_CaptureAndEmit(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// --- Arrange ---
	var emitted bytes.Buffer
	runner := NewExecRunner(&emitted, nil)
	cmd := Cmd{Name: "sh", Args: []string{"-c", "echo both"}, Capture: true, Emit: true}

	// --- Act ---
	out := runner.Run(context.Background(), cmd)

	// --- Assert ---
	require.NoError(t, out.Err)
	assert.Equal(t, "both\n", out.Stdout)
	assert.Equal(t, "both\n", emitted.String())
}

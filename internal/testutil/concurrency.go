package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/process"
)

// RecordingRunner is a process.Runner for concurrency tests. It never starts
// a real process; it records every execution window and the peak number of
// executions in flight.
type RecordingRunner struct {
	// Sleep delays every execution. SleepFor, when set, takes precedence.
	Sleep    time.Duration
	SleepFor func(cmd process.Cmd) time.Duration
	// Result builds the output. The default echoes the arguments.
	Result func(cmd process.Cmd) process.Output

	gate    chan struct{}
	started chan process.Cmd

	mu         sync.Mutex
	records    []ExecutionRecord
	running    int
	maxRunning int
}

// NewRecordingRunner creates a runner that completes immediately.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{started: make(chan process.Cmd, 1024)}
}

// NewGatedRunner creates a runner whose executions block until Release is
// called.
func NewGatedRunner() *RecordingRunner {
	r := NewRecordingRunner()
	r.gate = make(chan struct{})
	return r
}

// Run implements process.Runner.
func (r *RecordingRunner) Run(_ context.Context, cmd process.Cmd) process.Output {
	r.mu.Lock()
	r.running++
	if r.running > r.maxRunning {
		r.maxRunning = r.running
	}
	r.mu.Unlock()

	start := time.Now()
	r.started <- cmd

	if r.gate != nil {
		<-r.gate
	}
	sleep := r.Sleep
	if r.SleepFor != nil {
		sleep = r.SleepFor(cmd)
	}
	if sleep > 0 {
		time.Sleep(sleep)
	}

	out := EchoOutput(cmd)
	if r.Result != nil {
		out = r.Result(cmd)
	}

	r.mu.Lock()
	r.running--
	r.records = append(r.records, ExecutionRecord{Cmd: cmd, Start: start, End: time.Now()})
	r.mu.Unlock()
	return out
}

// Release lets n gated executions finish.
func (r *RecordingRunner) Release(n int) {
	for i := 0; i < n; i++ {
		r.gate <- struct{}{}
	}
}

// WaitStarted blocks until n executions have started, failing the test after
// a timeout.
func (r *RecordingRunner) WaitStarted(t *testing.T, n int) []process.Cmd {
	t.Helper()

	cmds := make([]process.Cmd, 0, n)
	timeout := time.After(5 * time.Second)
	for len(cmds) < n {
		select {
		case cmd := <-r.started:
			cmds = append(cmds, cmd)
		case <-timeout:
			t.Fatalf("timed out waiting for %d executions to start, got %d", n, len(cmds))
		}
	}
	return cmds
}

// Running returns the number of executions in flight.
func (r *RecordingRunner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// MaxConcurrent returns the peak number of executions in flight.
func (r *RecordingRunner) MaxConcurrent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxRunning
}

// Records returns the completed executions in completion order.
func (r *RecordingRunner) Records() []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionRecord(nil), r.records...)
}

// EchoOutput mimics echo: stdout is the arguments joined by spaces. A
// numactl wrapper is looked through.
func EchoOutput(cmd process.Cmd) process.Output {
	args := cmd.Args
	if cmd.Name == process.NumaCtl && len(args) >= 3 {
		args = args[3:]
	}
	return process.Output{Code: 0, Stdout: strings.Join(args, " ") + "\n"}
}

// FailOutput builds the output of a command that exited with code.
func FailOutput(cmd process.Cmd, code int, stderr string) process.Output {
	return process.Output{
		Code:   code,
		Stderr: stderr,
		Err:    &process.Error{Cmd: cmd.String(), Code: code, Stderr: stderr},
	}
}

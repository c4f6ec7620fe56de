package pool_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/pool"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/specialistvlad/proofgridgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCmds(n int) []process.Cmd {
	cmds := make([]process.Cmd, n)
	for i := range cmds {
		cmds[i] = process.Cmd{Name: "echo", Args: []string{fmt.Sprintf("job-%d", i)}, Capture: true}
	}
	return cmds
}

func TestPool_CapacityInvariant(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewRecordingRunner()
	runner.Sleep = 5 * time.Millisecond
	p := pool.New(3, pool.WithRunner(runner))

	// --- Act ---
	futures := make([]*pool.Future, 0, 20)
	for _, cmd := range echoCmds(20) {
		futures = append(futures, p.Submit(ctx, cmd))
	}
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}

	// --- Assert ---
	assert.LessOrEqual(t, runner.MaxConcurrent(), 3)
	assert.Len(t, runner.Records(), 20)
	require.Eventually(t, func() bool {
		return len(p.WorkerFreeStatus()) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestPool_QueueingCorrectness(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewGatedRunner()
	p := pool.New(2, pool.WithRunner(runner))

	// --- Act ---
	futures := make([]*pool.Future, 0, 5)
	for _, cmd := range echoCmds(5) {
		futures = append(futures, p.Submit(ctx, cmd))
	}
	runner.WaitStarted(t, 2)

	// --- Assert ---
	stats := p.Stats()
	assert.Equal(t, 2, stats.Busy)
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, 3, stats.Queued)
	assert.Equal(t, 2, runner.Running())

	runner.Release(5)
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
	stats = p.Stats()
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, uint64(5), stats.Completed)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestPool_QueueIsFIFO(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewGatedRunner()
	p := pool.New(1, pool.WithRunner(runner))
	cmds := echoCmds(4)

	// --- Act ---
	futures := make([]*pool.Future, 0, len(cmds))
	for _, cmd := range cmds {
		futures = append(futures, p.Submit(ctx, cmd))
	}
	var started []process.Cmd
	for i := 0; i < len(cmds); i++ {
		started = append(started, runner.WaitStarted(t, 1)...)
		runner.Release(1)
	}
	for _, f := range futures {
		<-f.Done()
	}

	// --- Assert ---
	for i, cmd := range started {
		assert.Equal(t, cmds[i].Args, cmd.Args, "queued jobs are serviced oldest first")
	}
}

func TestPool_RunParallelPreservesOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	const n = 6
	runner := testutil.NewRecordingRunner()
	// Job i sleeps (n-i) ticks so later jobs finish first.
	runner.SleepFor = func(cmd process.Cmd) time.Duration {
		var i int
		_, _ = fmt.Sscanf(cmd.Args[0], "job-%d", &i)
		return time.Duration(n-i) * 10 * time.Millisecond
	}
	p := pool.New(n, pool.WithRunner(runner))

	// --- Act ---
	outs, err := p.RunParallel(ctx, echoCmds(n), 0, false)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, outs, n)
	for i, out := range outs {
		assert.Equal(t, fmt.Sprintf("job-%d\n", i), out.Stdout)
	}
	records := runner.Records()
	assert.Equal(t, "job-5", records[0].Cmd.Args[0], "the shortest job completes first")
}

func TestPool_RunParallelKeepsFailuresInPlace(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewRecordingRunner()
	runner.Result = func(cmd process.Cmd) process.Output {
		if cmd.Args[0] == "job-1" {
			return testutil.FailOutput(cmd, 3, "bad input")
		}
		return testutil.EchoOutput(cmd)
	}
	p := pool.New(2, pool.WithRunner(runner))

	// --- Act ---
	outs, err := p.RunParallel(ctx, echoCmds(3), 0, false)

	// --- Assert ---
	require.NoError(t, err, "command failures are reported per output")
	require.Len(t, outs, 3)
	assert.NoError(t, outs[0].Err)
	assert.Error(t, outs[1].Err)
	assert.Equal(t, 3, outs[1].Code)
	assert.NoError(t, outs[2].Err)
	assert.Equal(t, uint64(1), p.Stats().Failed)
}

func TestPool_RunCommandReturnsProcessError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewRecordingRunner()
	runner.Result = func(cmd process.Cmd) process.Output { return testutil.FailOutput(cmd, 2, "nope") }
	p := pool.New(1, pool.WithRunner(runner))

	// --- Act ---
	out, err := p.RunCommand(ctx, process.Cmd{Name: "false"})

	// --- Assert ---
	require.Error(t, err)
	assert.Equal(t, 2, out.Code)
	code, ok := process.ExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
}

func TestPool_InvalidCommandIsRejected(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewRecordingRunner()
	p := pool.New(1, pool.WithRunner(runner))

	out, err := p.RunCommand(ctx, process.Cmd{Name: "echo", PrintableArgs: []int{0}})

	require.Error(t, err)
	assert.Equal(t, 1, out.Code)
	assert.Empty(t, runner.Records(), "invalid commands never reach the runner")
}

func TestPool_NumaSoftCapMidRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewGatedRunner()
	p := pool.New(4, pool.WithRunner(runner), pool.WithMaxWorkersPerNuma(1))

	var (
		outs []process.Output
		err  error
		wg   sync.WaitGroup
	)
	wg.Add(1)

	// --- Act ---
	go func() {
		defer wg.Done()
		outs, err = p.RunParallel(ctx, echoCmds(4), 2, true)
	}()
	started := runner.WaitStarted(t, 4)
	status := p.NumaStatus()
	runner.Release(4)
	wg.Wait()

	// --- Assert ---
	assert.Equal(t, map[int]numa.NodeStatus{
		0: {Busy: 2, Total: 1},
		1: {Busy: 2, Total: 1},
	}, status, "after both nodes reach the cap the least loaded node is reused")

	for _, cmd := range started {
		assert.Equal(t, process.NumaCtl, cmd.Name)
	}
	require.NoError(t, err)
	for i, out := range outs {
		assert.Equal(t, fmt.Sprintf("job-%d\n", i), out.Stdout)
	}
	for _, st := range p.NumaStatus() {
		assert.Zero(t, st.Busy, "every node is released on completion")
	}
}

func TestPool_NumaSkippedWhenOutnumbered(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewRecordingRunner()
	p := pool.New(4, pool.WithRunner(runner))

	// --- Act ---
	_, err := p.RunParallel(ctx, echoCmds(2), 4, true)

	// --- Assert ---
	require.NoError(t, err)
	for _, rec := range runner.Records() {
		assert.Equal(t, "echo", rec.Cmd.Name, "two jobs on four nodes are not bound")
	}
}

func TestPool_NoNumaWhenNodeCountZero(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewRecordingRunner()
	p := pool.New(2, pool.WithRunner(runner))

	_, err := p.RunParallel(ctx, echoCmds(10), 0, true)

	require.NoError(t, err)
	for _, rec := range runner.Records() {
		assert.Equal(t, "echo", rec.Cmd.Name)
	}
	assert.Empty(t, p.NumaStatus())
}

func TestPool_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	runner := testutil.NewGatedRunner()
	p := pool.New(1, pool.WithRunner(runner))
	f := p.Submit(ctx, process.Cmd{Name: "echo"})
	runner.WaitStarted(t, 1)

	waitCtx, cancel := context.WithCancel(ctx)
	cancel()

	// --- Act ---
	_, err := f.Wait(waitCtx)

	// --- Assert ---
	require.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, p.WorkerFreeStatus(), "the worker stays busy until the process exits")

	runner.Release(1)
	_, err = f.Wait(ctx)
	require.NoError(t, err)
}

// Scenario: a pool of two workers given three sleeping jobs reports no free
// worker right after submission and both workers free once all complete.
func TestPool_WorkerFreeStatusWithRealProcesses(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep is not available")
	}

	// --- Arrange ---
	ctx, _ := testutil.NewTestContext(t)
	p := pool.New(2)
	sleepCmd := process.Cmd{Name: "sleep", Args: []string{"0.2"}}

	// --- Act ---
	futures := []*pool.Future{
		p.Submit(ctx, sleepCmd),
		p.Submit(ctx, sleepCmd),
		p.Submit(ctx, sleepCmd),
	}
	immediately := p.WorkerFreeStatus()
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}

	// --- Assert ---
	assert.Empty(t, immediately)
	require.Eventually(t, func() bool {
		return len(p.WorkerFreeStatus()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{0, 1}, p.WorkerFreeStatus())
}

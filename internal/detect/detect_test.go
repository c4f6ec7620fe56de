package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StageLayout(t *testing.T) {
	t.Parallel()

	// --- Act ---
	p := New()

	// --- Assert ---
	require.NoError(t, p.Validate())
	assert.Equal(t, PlanName, p.Name)
	assert.Equal(t, []plan.StageInfo{
		{Name: "PlatformDetection", Kind: "main-thread"},
		{Name: "NumaCtlCheck", Kind: "serial-cmd", Conditional: true},
		{Name: "NumaCtlNodeCheck", Kind: "serial-cmd", Conditional: true},
	}, p.Describe())
}

func TestPlatformDetection_UsesOverrides(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := New(WithOS("linux"), WithKernel(func() string { return "6.1.0" }))
	f := p.NewState(nil)

	// --- Act ---
	err := p.Stages[0].Execute(context.Background(), f)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "linux", f.OS)
	assert.Equal(t, "6.1.0", f.Kernel)
	assert.NotEmpty(t, f.Arch)
}

func TestNumaCtlCheck(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		goos    string
		out     process.Output
		runs    bool
		numaCtl bool
	}{
		{name: "skipped off linux", goos: "darwin", runs: false},
		{name: "works", goos: "linux", out: process.Output{Code: 0}, runs: true, numaCtl: true},
		{name: "stderr noise", goos: "linux", out: process.Output{Code: 0, Stderr: "warning"}, runs: true, numaCtl: false},
		{name: "missing binary", goos: "linux", out: process.Output{Code: 1, Err: errors.New("not found")}, runs: true, numaCtl: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			ctx := context.Background()
			p := New(WithOS(tc.goos))
			f := p.NewState(nil)
			require.NoError(t, p.Stages[0].Execute(ctx, f))
			stage := p.Stages[1]

			// --- Act ---
			runs, err := stage.Prerequisite(ctx, f)
			require.NoError(t, err)
			if runs {
				require.NoError(t, stage.OnResult(ctx, f, tc.out))
			}

			// --- Assert ---
			assert.Equal(t, tc.runs, runs)
			assert.Equal(t, tc.numaCtl, f.NumaCtl)
		})
	}
}

func TestNumaCtlNodeCheck(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		stdout   string
		nodes    int
		known    bool
		degraded bool
	}{
		{name: "two nodes", stdout: "2\n", nodes: 2, known: true},
		{name: "zero nodes", stdout: "0", nodes: 0, known: true},
		{name: "unparsable", stdout: "", known: false, degraded: true},
		{name: "garbage", stdout: "available: x", known: false, degraded: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			ctx := context.Background()
			p := New()
			f := &platform.Features{NumaCtl: true}
			stage := p.Stages[2]

			// --- Act ---
			runs, err := stage.Prerequisite(ctx, f)
			require.NoError(t, err)
			require.True(t, runs)
			err = stage.OnResult(ctx, f, process.Output{Stdout: tc.stdout})

			// --- Assert ---
			require.NoError(t, err)
			n, ok := f.NodeCount()
			assert.Equal(t, tc.known, ok)
			if ok {
				assert.Equal(t, tc.nodes, n)
			}
			assert.Equal(t, tc.degraded, f.NumaDegraded)
			if tc.degraded {
				assert.False(t, f.HasNuma())
			}
		})
	}
}

func TestNumaCtlNodeCheck_SkippedWithoutNumaCtl(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := New()

	// --- Act ---
	runs, err := p.Stages[2].Prerequisite(context.Background(), &platform.Features{})

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, runs)
}

func TestThen_ReturnsState(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := New()
	f := &platform.Features{OS: "linux"}

	// --- Act ---
	got, err := p.Then(context.Background(), f)

	// --- Assert ---
	require.NoError(t, err)
	assert.Same(t, f, got)
}

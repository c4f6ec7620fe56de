package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/detect"
	"github.com/specialistvlad/proofgridgo/internal/hclplan"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/specialistvlad/proofgridgo/internal/testutil"
	"github.com/specialistvlad/proofgridgo/modules/numaecho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const echoPlanHCL = `
plan "echo_many" {
  description = "Echo every input word in parallel."

  stage "parallel-cmd" "echo" {
    numa     = true
    for_each = input.words
    command {
      name = "echo"
      args = [each.value]
    }
    into = "echoes"
  }

  output = [for r in vars.echoes : trimspace(r.stdout)]
}
`

// setupAppTest creates an app that never starts real processes and reports
// a non-Linux host.
func setupAppTest(t *testing.T, cfg Config, opts ...Option) (*App, *testutil.SafeBuffer) {
	t.Helper()

	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxWorkersPerNuma == 0 {
		cfg.MaxWorkersPerNuma = 2
	}
	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &testutil.SafeBuffer{}
	base := []Option{
		WithRunner(testutil.NewRecordingRunner()),
		WithDetectionOptions(detect.WithOS("darwin")),
	}
	a, err := NewApp(logBuffer, validated, hclplan.NewLoader(), append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if testutil.LogsEnabled() {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return a, logBuffer
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	valid := Config{PlanName: "numa_echo", WorkerCount: 1, MaxWorkersPerNuma: 2}
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing plan", mutate: func(c *Config) { c.PlanName = "" }, wantErr: "plan name is required"},
		{name: "no workers", mutate: func(c *Config) { c.WorkerCount = 0 }, wantErr: "worker count"},
		{name: "no numa cap", mutate: func(c *Config) { c.MaxWorkersPerNuma = 0 }, wantErr: "max workers per NUMA"},
		{name: "bad port", mutate: func(c *Config) { c.StatusPort = 70000 }, wantErr: "out of range"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "invalid log format"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "invalid log level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			cfg := valid
			tc.mutate(&cfg)

			// --- Act ---
			got, err := NewConfig(cfg)

			// --- Assert ---
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "text", got.LogFormat)
			assert.Equal(t, "info", got.LogLevel)
		})
	}
}

func TestNewConfig_DefaultOutputPath(t *testing.T) {
	t.Parallel()

	// --- Act ---
	got, err := NewConfig(Config{PlanName: "p", InputPath: "in/proof.json", WorkerCount: 1, MaxWorkersPerNuma: 1})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "in/proof.json.converted", got.OutputPath)
}

func TestLoadSettings_AppliesUnlessExplicit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plans: [plans, extra]
workers: 8
max_workers_per_numa: 3
log_level: debug
status_port: 9090
metrics:
  namespace: conv
`), 0o600))
	cfg := Config{WorkerCount: 1, MaxWorkersPerNuma: 2, LogLevel: "warn"}

	// --- Act ---
	s, err := LoadSettings(path)
	require.NoError(t, err)
	s.ApplyTo(&cfg, map[string]bool{"log-level": true})

	// --- Assert ---
	assert.Equal(t, []string{"plans", "extra"}, cfg.PlanPaths)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 3, cfg.MaxWorkersPerNuma)
	assert.Equal(t, "warn", cfg.LogLevel, "explicit flags win")
	assert.Equal(t, 9090, cfg.StatusPort)
	assert.Equal(t, "conv", cfg.MetricsNamespace)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("wrokers: 2\n"), 0o600))
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	_, err := LoadSettings(unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrokers")

	_, err = LoadSettings(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	s, err := LoadSettings(empty)
	require.NoError(t, err)
	assert.Nil(t, s.Workers)
}

func TestRun_BuiltInPlanToResultWriter(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var out testutil.SafeBuffer
	a, _ := setupAppTest(t, Config{PlanName: numaecho.PlanName}, WithResultWriter(&out))

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	var got struct {
		Output []string `json:"output"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.String()), &got))
	assert.Len(t, got.Output, numaecho.DefaultCount)
	assert.Equal(t, "Command0", got.Output[0])
}

func TestRun_DeclarativePlanWritesConvertedFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	plansDir := filepath.Join(dir, "plans")
	require.NoError(t, os.MkdirAll(plansDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(plansDir, "echo.hcl"), []byte(echoPlanHCL), 0o600))
	inputPath := filepath.Join(dir, "input.yaml")
	require.NoError(t, os.WriteFile(inputPath, []byte("words:\n  - alpha\n  - beta\n"), 0o600))

	a, logs := setupAppTest(t, Config{PlanName: "echo_many", InputPath: inputPath, PlanPaths: []string{plansDir}})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	data, readErr := os.ReadFile(inputPath + ConvertedSuffix)
	require.NoError(t, readErr)
	assert.JSONEq(t, `["alpha", "beta"]`, string(data))
	assert.Contains(t, logs.String(), "Result written")
	assert.Contains(t, a.Registry().PlanNames(), "echo_many")
}

func TestRun_UnknownPlanListsAvailable(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a, _ := setupAppTest(t, Config{PlanName: "groth16"})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlan))
	assert.Contains(t, err.Error(), "numa_echo")
	assert.Contains(t, err.Error(), "platform_features")
}

func TestRun_MissingInputFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a, _ := setupAppTest(t, Config{PlanName: numaecho.PlanName, InputPath: filepath.Join(t.TempDir(), "nope.json")})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read input")
}

// blockingModule registers a plan whose only stage waits for release.
type blockingModule struct {
	started  chan struct{}
	release  chan struct{}
	finallys atomic.Int32
}

type blockingState struct{ *platform.Features }

func (m *blockingModule) Register(r *registry.Registry) {
	r.RegisterPlan(registry.PlanOf(&plan.Plan[*blockingState, cty.Value, cty.Value]{
		Name:     "blocking",
		NewState: func(f *platform.Features) *blockingState { return &blockingState{f} },
		Stages: []plan.Stage[*blockingState]{
			plan.NewMainThread("wait", func(context.Context, *blockingState) error {
				close(m.started)
				<-m.release
				return nil
			}),
		},
		Then: func(context.Context, *blockingState) (cty.Value, error) { return cty.True, nil },
		Finally: func(context.Context, *blockingState) error {
			m.finallys.Add(1)
			return nil
		},
	}, ""))
}

func TestRun_InterruptTerminatesExecutor(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	mod := &blockingModule{started: make(chan struct{}), release: make(chan struct{})}
	a, logs := setupAppTest(t, Config{PlanName: "blocking"}, WithModules(mod))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	// --- Act ---
	go func() { errCh <- a.Run(ctx) }()
	<-mod.started
	cancel()
	var err error
	select {
	case err = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	close(mod.release)

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.Equal(t, int32(1), mod.finallys.Load())
	assert.Contains(t, logs.String(), "Interrupted, terminating executor")
	assert.Eventually(t, func() bool { return len(a.Executor().ActivePlans()) == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), mod.finallys.Load(), "finally must not run twice")
}

func TestStatusMux(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var out testutil.SafeBuffer
	a, _ := setupAppTest(t, Config{PlanName: numaecho.PlanName}, WithResultWriter(&out))
	require.NoError(t, a.Run(context.Background()))
	srv := httptest.NewServer(a.statusMux())
	defer srv.Close()

	// --- Act ---
	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	statsResp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	// --- Assert ---
	assert.Equal(t, http.StatusOK, health.StatusCode)

	var stats statsResponse
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, a.Executor().ID(), stats.Executor)
	assert.Equal(t, 2, stats.Pool.Size)
	assert.Equal(t, uint64(numaecho.DefaultCount), stats.Pool.Completed)
	assert.Contains(t, stats.Plans, numaecho.PlanName)
	assert.Empty(t, stats.Active)

	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "proofgrid_process_total")
}

func TestNewApp_BundledPlansCompile(t *testing.T) {
	t.Parallel()

	// --- Act ---
	a, _ := setupAppTest(t, Config{PlanName: "groth16", PlanPaths: []string{filepath.Join("..", "..", "plans")}})

	// --- Assert ---
	names := a.Registry().PlanNames()
	assert.Contains(t, names, "groth16")
	assert.Contains(t, names, "echo_many")
	p, ok := a.Registry().Plan("groth16")
	require.True(t, ok)
	stages := p.Stages()
	require.Len(t, stages, 12)
	assert.Equal(t, "ComputeZKP", stages[5].Name)
	assert.True(t, stages[5].NumaOptimized)
}

func TestNewApp_UnknownHandlerInPlanFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.hcl"), []byte(`
plan "bad" {
  stage "main-thread" "x" {
    handler = "does.not.exist"
  }
}
`), 0o600))
	cfg, err := NewConfig(Config{PlanName: "bad", PlanPaths: []string{dir}, WorkerCount: 1, MaxWorkersPerNuma: 2})
	require.NoError(t, err)

	// --- Act ---
	_, err = NewApp(&testutil.SafeBuffer{}, cfg, hclplan.NewLoader())

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, errors.Is(err, plan.ErrInvalidPlan))
	assert.Contains(t, err.Error(), "unknown handler 'does.not.exist'")
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/proofgridgo/internal/builder"
	"github.com/specialistvlad/proofgridgo/internal/config"
	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/detect"
	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/executor"
	"github.com/specialistvlad/proofgridgo/internal/metrics"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/specialistvlad/proofgridgo/internal/statusfeed"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx     context.Context
	outW    io.Writer
	resultW io.Writer
	logger  *slog.Logger
	config  *Config

	registry   *registry.Registry
	executor   *executor.Executor
	metrics    *metrics.Exporter
	promReg    *prometheus.Registry
	feed       *statusfeed.Feed
	httpServer *http.Server
}

type options struct {
	modules    []registry.Module
	runner     process.Runner
	detectOpts []detect.Option
	resultW    io.Writer
}

// Option adjusts how NewApp wires the application.
type Option func(*options)

// WithModules replaces the compiled-in core modules.
func WithModules(modules ...registry.Module) Option {
	return func(o *options) { o.modules = modules }
}

// WithRunner replaces the os/exec process runner.
func WithRunner(r process.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithDetectionOptions adjusts the platform detection plan.
func WithDetectionOptions(opts ...detect.Option) Option {
	return func(o *options) { o.detectOpts = append(o.detectOpts, opts...) }
}

// WithResultWriter sets where results go when there is no output file. The
// default is the log writer.
func WithResultWriter(w io.Writer) Option {
	return func(o *options) { o.resultW = w }
}

// NewApp is the constructor for the main application. It registers the Go
// modules, loads the declarative plans found under the configured paths and
// builds the executor with its metrics and status feed.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.modules) == 0 {
		o.modules = coreModules
	}
	if o.resultW == nil {
		o.resultW = outW
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	for _, mod := range o.modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(o.modules), "handlers", reg.HandlerNames())

	if len(cfg.PlanPaths) > 0 {
		if err := reg.LoadPlans(ctx, loader, compilePlan, cfg.PlanPaths...); err != nil {
			return nil, fmt.Errorf("failed to load plans: %w", err)
		}
	}
	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.", "plans", reg.PlanNames())

	promReg := prometheus.NewRegistry()
	exporter, err := metrics.New(promReg, metrics.Options{Namespace: cfg.MetricsNamespace})
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	execOpts := []executor.Option{
		executor.WithMaxWorkersPerNuma(cfg.MaxWorkersPerNuma),
		executor.WithRecorder(exporter),
		executor.WithSink(exporter),
		executor.WithDetectionOptions(o.detectOpts...),
	}
	if o.runner != nil {
		execOpts = append(execOpts, executor.WithRunner(o.runner))
	}

	var feed *statusfeed.Feed
	if cfg.StatusPort > 0 {
		feed = statusfeed.New(logger)
		execOpts = append(execOpts, executor.WithSink(feed))
	}
	execOpts = append(execOpts, executor.WithSink(events.SinkFunc(func(e events.Event) {
		logger.Debug("Executor event.", "kind", string(e.Kind), "plan", e.Plan, "stage", e.Stage)
	})))

	exec := executor.New(cfg.WorkerCount, execOpts...)
	if feed != nil {
		feed.Attach(exec)
	}

	return &App{
		ctx:      ctx,
		outW:     outW,
		resultW:  o.resultW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		executor: exec,
		metrics:  exporter,
		promReg:  promReg,
		feed:     feed,
	}, nil
}

// compilePlan turns a declarative plan definition into a registry entry.
func compilePlan(def *config.Plan, r *registry.Registry) (registry.Runnable, error) {
	p, err := builder.Build(def, r)
	if err != nil {
		return nil, err
	}
	return registry.PlanOf(p, def.Description), nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Executor returns the application's executor.
func (a *App) Executor() *executor.Executor {
	return a.executor
}

// Package metrics exports pool and plan lifecycle measurements to
// Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/proofgridgo/internal/events"
	"github.com/specialistvlad/proofgridgo/internal/pool"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "proofgrid"

// Options controls collector configuration.
type Options struct {
	Namespace       string
	DurationBuckets []float64
}

// Exporter records pool activity and executor events as Prometheus
// collectors.
type Exporter struct {
	queueDepth      *prom.GaugeVec
	busyWorkers     *prom.GaugeVec
	processDuration *prom.HistogramVec
	processTotal    *prom.CounterVec
	activePlans     *prom.GaugeVec
	planTotal       *prom.CounterVec
	planDuration    *prom.HistogramVec
	stageTotal      *prom.CounterVec
}

var (
	_ pool.Recorder = (*Exporter)(nil)
	_ events.Sink   = (*Exporter)(nil)
)

// New creates and registers the collectors. Collectors already present in
// reg are reused, so several exporters may share one registry.
func New(reg prom.Registerer, opts Options) (*Exporter, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(0.01, 4, 10)
	}

	queueDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: ns,
		Name:      "pool_queue_depth",
		Help:      "Commands waiting for a free worker.",
	}, []string{"pool"})
	busyWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: ns,
		Name:      "pool_busy_workers",
		Help:      "Workers currently running a child process.",
	}, []string{"pool"})
	processDuration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: ns,
		Name:      "process_duration_seconds",
		Help:      "Child process wall time in seconds.",
		Buckets:   buckets,
	}, []string{"pool", "numa_node"})
	processTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: ns,
		Name:      "process_total",
		Help:      "Child processes run, by result.",
	}, []string{"pool", "result"})
	activePlans := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: ns,
		Name:      "plans_active",
		Help:      "Plan executions that have started and not finished.",
	}, []string{"executor"})
	planTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: ns,
		Name:      "plan_executions_total",
		Help:      "Finished plan executions, by final status.",
	}, []string{"plan", "status"})
	planDuration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: ns,
		Name:      "plan_duration_seconds",
		Help:      "Plan execution wall time in seconds, finally hook included.",
		Buckets:   buckets,
	}, []string{"plan"})
	stageTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: ns,
		Name:      "stage_total",
		Help:      "Stages run or skipped, by outcome.",
	}, []string{"plan", "stage", "outcome"})

	var err error
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if busyWorkers, err = registerCollector(reg, busyWorkers); err != nil {
		return nil, err
	}
	if processDuration, err = registerCollector(reg, processDuration); err != nil {
		return nil, err
	}
	if processTotal, err = registerCollector(reg, processTotal); err != nil {
		return nil, err
	}
	if activePlans, err = registerCollector(reg, activePlans); err != nil {
		return nil, err
	}
	if planTotal, err = registerCollector(reg, planTotal); err != nil {
		return nil, err
	}
	if planDuration, err = registerCollector(reg, planDuration); err != nil {
		return nil, err
	}
	if stageTotal, err = registerCollector(reg, stageTotal); err != nil {
		return nil, err
	}

	return &Exporter{
		queueDepth:      queueDepth,
		busyWorkers:     busyWorkers,
		processDuration: processDuration,
		processTotal:    processTotal,
		activePlans:     activePlans,
		planTotal:       planTotal,
		planDuration:    planDuration,
		stageTotal:      stageTotal,
	}, nil
}

// RecordQueueDepth implements pool.Recorder.
func (m *Exporter) RecordQueueDepth(poolID string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(poolID, "unknown")).Set(float64(depth))
}

// RecordBusyWorkers implements pool.Recorder.
func (m *Exporter) RecordBusyWorkers(poolID string, busy int) {
	if m == nil {
		return
	}
	m.busyWorkers.WithLabelValues(normalizeLabel(poolID, "unknown")).Set(float64(busy))
}

// RecordJob implements pool.Recorder. A negative node means the command was
// not bound to a NUMA node.
func (m *Exporter) RecordJob(poolID string, node int, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	poolID = normalizeLabel(poolID, "unknown")
	m.processDuration.WithLabelValues(poolID, nodeLabel(node)).Observe(duration.Seconds())
	result := "succeeded"
	if failed {
		result = "failed"
	}
	m.processTotal.WithLabelValues(poolID, result).Inc()
}

// Publish implements events.Sink.
func (m *Exporter) Publish(e events.Event) {
	if m == nil {
		return
	}
	switch e.Kind {
	case events.PlanStarted:
		m.activePlans.WithLabelValues(normalizeLabel(e.Executor, "unknown")).Inc()
	case events.PlanFinished:
		planName := normalizeLabel(e.Plan, "unknown")
		m.activePlans.WithLabelValues(normalizeLabel(e.Executor, "unknown")).Dec()
		m.planTotal.WithLabelValues(planName, normalizeLabel(e.Status, "unknown")).Inc()
		m.planDuration.WithLabelValues(planName).Observe(e.Duration.Seconds())
	case events.StageSkipped:
		m.stageTotal.WithLabelValues(normalizeLabel(e.Plan, "unknown"), normalizeLabel(e.Stage, "unknown"), "skipped").Inc()
	case events.StageFinished:
		m.stageTotal.WithLabelValues(normalizeLabel(e.Plan, "unknown"), normalizeLabel(e.Stage, "unknown"), normalizeLabel(e.Status, "unknown")).Inc()
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func nodeLabel(node int) string {
	if node < 0 {
		return "none"
	}
	return strconv.Itoa(node)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}

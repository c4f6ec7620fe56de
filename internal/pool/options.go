package pool

import (
	"time"

	"github.com/specialistvlad/proofgridgo/internal/process"
)

// Recorder receives pool measurements. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	RecordQueueDepth(pool string, depth int)
	RecordBusyWorkers(pool string, busy int)
	RecordJob(pool string, node int, duration time.Duration, failed bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordQueueDepth(string, int)               {}
func (nopRecorder) RecordBusyWorkers(string, int)              {}
func (nopRecorder) RecordJob(string, int, time.Duration, bool) {}

// Option configures a Pool.
type Option func(*Pool)

// WithRunner replaces the default os/exec runner.
func WithRunner(r process.Runner) Option {
	return func(p *Pool) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithMaxWorkersPerNuma sets the soft per-node cap used by NUMA dispatch.
func WithMaxWorkersPerNuma(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxPerNuma = n
		}
	}
}

// WithRecorder attaches a measurement sink.
func WithRecorder(r Recorder) Option {
	return func(p *Pool) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithID overrides the generated pool label used in logs and metrics.
func WithID(id string) Option {
	return func(p *Pool) {
		if id != "" {
			p.id = id
		}
	}
}

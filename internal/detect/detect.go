// Package detect provides the bootstrap plan that probes the host before
// every plan execution: the OS family, whether numactl works and how many
// NUMA nodes are available.
package detect

import (
	"context"
	"runtime"
	"strconv"
	"strings"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/plan"
	"github.com/specialistvlad/proofgridgo/internal/platform"
	"github.com/specialistvlad/proofgridgo/internal/process"
)

// PlanName is the name the detection plan logs under.
const PlanName = "PlatformFeatureDetection"

// NodeCountScript prints the number of available NUMA nodes.
const NodeCountScript = `numactl --hardware | grep -oP '(?<=available: )\d+'`

// Plan is the detection plan type.
type Plan = plan.Plan[*platform.Features, struct{}, *platform.Features]

type options struct {
	goos   string
	goarch string
	kernel func() string
}

// Option adjusts what the main-thread stage reports.
type Option func(*options)

// WithOS overrides the reported OS family.
func WithOS(goos string) Option {
	return func(o *options) { o.goos = goos }
}

// WithKernel overrides the kernel release probe.
func WithKernel(kernel func() string) Option {
	return func(o *options) { o.kernel = kernel }
}

// New builds the three-stage detection plan.
func New(opts ...Option) *Plan {
	o := options{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		kernel: platform.KernelRelease,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Plan{
		Name: PlanName,
		NewState: func(f *platform.Features) *platform.Features {
			if f == nil {
				return &platform.Features{}
			}
			return f
		},
		Stages: []plan.Stage[*platform.Features]{
			plan.NewMainThread("PlatformDetection", func(_ context.Context, f *platform.Features) error {
				f.OS = o.goos
				f.Arch = o.goarch
				f.Kernel = o.kernel()
				return nil
			}),
			plan.NewSerial("NumaCtlCheck",
				plan.Static[*platform.Features](process.Cmd{
					Name:    process.NumaCtl,
					Args:    []string{"echo"},
					Capture: true,
				}),
				func(_ context.Context, f *platform.Features, out process.Output) error {
					f.NumaCtl = out.Err == nil && out.Stderr == ""
					return nil
				},
			).When(func(_ context.Context, f *platform.Features) (bool, error) {
				return f.IsLinux(), nil
			}),
			plan.NewSerial("NumaCtlNodeCheck",
				plan.Static[*platform.Features](process.Cmd{
					Name:    "/bin/bash",
					Args:    []string{"-c", NodeCountScript},
					Capture: true,
				}),
				func(ctx context.Context, f *platform.Features, out process.Output) error {
					n, err := strconv.Atoi(strings.TrimSpace(out.Stdout))
					if err != nil {
						ctxlog.FromContext(ctx).Warn("Could not parse NUMA node count, NUMA binding disabled.", "stdout", out.Stdout, "error", err)
						f.MarkDegraded()
						return nil
					}
					f.SetNodeCount(n)
					return nil
				},
			).When(func(_ context.Context, f *platform.Features) (bool, error) {
				return f.NumaCtl, nil
			}),
		},
		Then: func(_ context.Context, f *platform.Features) (*platform.Features, error) {
			return f, nil
		},
	}
}

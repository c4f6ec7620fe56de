// Package platform holds the host facts every plan execution is seeded with.
package platform

import (
	"log/slog"
	"runtime"
)

// Features are the detected facts about the host. They are filled in by the
// detection plan once per execution and read by the plan that follows.
type Features struct {
	// OS is the operating system family, as reported by runtime.GOOS.
	OS string `json:"os"`
	// Arch is the CPU architecture, as reported by runtime.GOARCH.
	Arch string `json:"arch"`
	// Kernel is the kernel release, empty when it could not be read.
	Kernel string `json:"kernel,omitempty"`
	// NumaCtl reports whether the numactl binding tool works on this host.
	NumaCtl bool `json:"numactl"`
	// NumaNodes is the number of NUMA nodes. It is nil when detection was
	// skipped or its output could not be parsed.
	NumaNodes *int `json:"numa_nodes,omitempty"`
	// NumaDegraded is set when node detection ran but produced no number.
	NumaDegraded bool `json:"numa_degraded,omitempty"`
}

// IsLinux reports whether the host runs Linux.
func (f *Features) IsLinux() bool {
	return f != nil && f.OS == "linux"
}

// NodeCount returns the NUMA node count when it is known.
func (f *Features) NodeCount() (int, bool) {
	if f == nil || f.NumaNodes == nil {
		return 0, false
	}
	return *f.NumaNodes, true
}

// HasNuma reports whether NUMA-bound dispatch can be used.
func (f *Features) HasNuma() bool {
	n, ok := f.NodeCount()
	return ok && n > 0
}

// SetNodeCount records a parsed node count.
func (f *Features) SetNodeCount(n int) {
	f.NumaNodes = &n
	f.NumaDegraded = false
}

// MarkDegraded records that node detection produced no usable number.
func (f *Features) MarkDegraded() {
	f.NumaNodes = nil
	f.NumaDegraded = true
}

// LogValue implements slog.LogValuer.
func (f *Features) LogValue() slog.Value {
	if f == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.String("os", f.OS),
		slog.String("arch", f.Arch),
		slog.Bool("numactl", f.NumaCtl),
	}
	if f.Kernel != "" {
		attrs = append(attrs, slog.String("kernel", f.Kernel))
	}
	if n, ok := f.NodeCount(); ok {
		attrs = append(attrs, slog.Int("numa_nodes", n))
	} else if f.NumaDegraded {
		attrs = append(attrs, slog.String("numa_nodes", "NaN"))
	}
	return slog.GroupValue(attrs...)
}

// Host describes the running process's host without probing external tools.
func Host() *Features {
	return &Features{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		Kernel: KernelRelease(),
	}
}

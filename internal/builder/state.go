package builder

import (
	"maps"
	"sort"

	"github.com/specialistvlad/proofgridgo/internal/platform"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/zclconf/go-cty/cty"
)

// State is the execution state of a compiled plan. It is only touched by the
// stages and hooks of its own execution, one at a time.
type State struct {
	Features *platform.Features
	Input    cty.Value
	Vars     map[string]cty.Value
}

// NewState creates the state around the detected features.
func NewState(features *platform.Features) *State {
	return &State{
		Features: features,
		Input:    cty.NullVal(cty.DynamicPseudoType),
		Vars:     make(map[string]cty.Value),
	}
}

// Set stores a captured value. An empty name discards it.
func (s *State) Set(name string, v cty.Value) {
	if name == "" {
		return
	}
	s.Vars[name] = v
}

// VarsValue returns the captured vars as one object.
func (s *State) VarsValue() cty.Value {
	if len(s.Vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(maps.Clone(s.Vars))
}

// VarNames returns the names of the captured vars in sorted order.
func (s *State) VarNames() []string {
	names := make([]string, 0, len(s.Vars))
	for name := range s.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlatformValue exposes the features to expressions.
func PlatformValue(f *platform.Features) cty.Value {
	if f == nil {
		f = &platform.Features{}
	}
	nodes := cty.NullVal(cty.Number)
	if n, ok := f.NodeCount(); ok {
		nodes = cty.NumberIntVal(int64(n))
	}
	return cty.ObjectVal(map[string]cty.Value{
		"os":            cty.StringVal(f.OS),
		"arch":          cty.StringVal(f.Arch),
		"kernel":        cty.StringVal(f.Kernel),
		"numactl":       cty.BoolVal(f.NumaCtl),
		"numa_nodes":    nodes,
		"numa_degraded": cty.BoolVal(f.NumaDegraded),
	})
}

// OutputValue exposes a command result to expressions.
func OutputValue(out process.Output) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"code":   cty.NumberIntVal(int64(out.Code)),
		"stdout": cty.StringVal(out.Stdout),
		"stderr": cty.StringVal(out.Stderr),
		"failed": cty.BoolVal(out.Failed()),
	})
}

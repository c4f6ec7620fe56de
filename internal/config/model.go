package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
)

// Model is the set of declarative plans found by a Loader.
type Model struct {
	Plans map[string]*Plan
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{Plans: make(map[string]*Plan)}
}

// Add stores p, rejecting a second plan with the same name.
func (m *Model) Add(p *Plan) error {
	if prev, ok := m.Plans[p.Name]; ok {
		return fmt.Errorf("plan '%s' is defined twice: %s and %s", p.Name, prev.Source, p.Source)
	}
	m.Plans[p.Name] = p
	return nil
}

// Names returns the plan names in sorted order.
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.Plans))
	for name := range m.Plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plan is the format-agnostic representation of a `plan` block.
type Plan struct {
	Name        string
	Description string
	// Source is the file the plan was read from.
	Source string

	Init   *Call
	Stages []*Stage
	// Output is evaluated after the last stage and becomes the result. A nil
	// Output yields the captured vars object.
	Output  hcl.Expression
	Finally *Call
}

// Call invokes a registered handler.
type Call struct {
	Handler string
	// Args is evaluated against the current state. nil means no arguments.
	Args hcl.Expression
	// Into names the var that receives the handler result. Empty discards it.
	Into string
}

// Stage is the format-agnostic representation of a `stage` block.
type Stage struct {
	Kind string
	Name string
	// When is the prerequisite. nil means always run.
	When hcl.Expression

	// Call is used by main-thread stages.
	Call *Call

	// Command is used by serial and parallel stages.
	Command *Command
	// ForEach fans the command out in parallel stages; each element is
	// exposed as `each.key` and `each.value`.
	ForEach hcl.Expression
	Numa    bool
	// Into names the var that receives the command result or results.
	Into string
	// AllowFailure keeps going when a command fails; the failed output is
	// still captured.
	AllowFailure bool
}

// Command is the format-agnostic representation of a `command` block. Every
// field is evaluated when the stage starts.
type Command struct {
	Name          hcl.Expression
	Args          hcl.Expression
	Capture       hcl.Expression
	Emit          hcl.Expression
	PrintableArgs hcl.Expression
}

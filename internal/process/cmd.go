package process

import (
	"fmt"
	"strings"
)

// NumaCtl is the binding tool used to pin a child to a NUMA node.
const NumaCtl = "numactl"

// numaPrefixLen is the number of arguments WrapNuma places before the
// original command name and arguments.
const numaPrefixLen = 3

// Cmd describes one external invocation.
type Cmd struct {
	// Name is the executable, resolved through PATH when not absolute.
	Name string
	// Args is the ordered argument list, excluding Name.
	Args []string
	// Capture collects stdout and stderr into the Output.
	Capture bool
	// Emit mirrors the child's output to the runner's emit writer live.
	Emit bool
	// PrintableArgs lists the Args indices that are safe to print verbatim.
	// A nil slice means every argument is printable; any other argument is
	// shortened in logs.
	PrintableArgs []int
}

// Validate checks that the command can be dispatched.
func (c Cmd) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("command name must not be empty")
	}
	for _, idx := range c.PrintableArgs {
		if idx < 0 || idx >= len(c.Args) {
			return fmt.Errorf("printable argument index %d is out of range for command %q with %d arguments", idx, c.Name, len(c.Args))
		}
	}
	return nil
}

// String renders the command for logs, redacting arguments that are not
// listed in PrintableArgs.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	var printable map[int]struct{}
	if c.PrintableArgs != nil {
		printable = make(map[int]struct{}, len(c.PrintableArgs))
		for _, idx := range c.PrintableArgs {
			printable[idx] = struct{}{}
		}
	}

	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for i, arg := range c.Args {
		if printable != nil {
			if _, ok := printable[i]; !ok {
				parts = append(parts, fmt.Sprintf("<%d bytes>", len(arg)))
				continue
			}
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// WrapNuma returns a copy of the command that runs under numactl, bound to
// the CPUs and memory of the given node. The three new leading arguments are
// printable and any existing printable indices are shifted past them.
func (c Cmd) WrapNuma(node int) Cmd {
	args := make([]string, 0, len(c.Args)+numaPrefixLen)
	args = append(args,
		fmt.Sprintf("--cpunodebind=%d", node),
		fmt.Sprintf("--membind=%d", node),
		c.Name,
	)
	args = append(args, c.Args...)

	wrapped := c
	wrapped.Name = NumaCtl
	wrapped.Args = args

	if c.PrintableArgs != nil {
		printable := make([]int, 0, len(c.PrintableArgs)+numaPrefixLen)
		for i := 0; i < numaPrefixLen; i++ {
			printable = append(printable, i)
		}
		for _, idx := range c.PrintableArgs {
			printable = append(printable, idx+numaPrefixLen)
		}
		wrapped.PrintableArgs = printable
	}
	return wrapped
}

package plan

import "fmt"

// Kind tags the shape of a Stage.
type Kind int

const (
	// KindUnknown is the zero value. Executing it is a fatal error.
	KindUnknown Kind = iota
	// MainThread runs a function over the state without a subprocess.
	MainThread
	// SerialCmd runs exactly one command to completion.
	SerialCmd
	// ParallelCmd runs a list of commands concurrently through the pool.
	ParallelCmd
)

// String returns the name used in logs and plan files.
func (k Kind) String() string {
	switch k {
	case MainThread:
		return "main-thread"
	case SerialCmd:
		return "serial-cmd"
	case ParallelCmd:
		return "parallel-cmd"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind accepts both the long names and the short forms used in plan
// files ("main", "serial", "parallel").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "main-thread", "main":
		return MainThread, nil
	case "serial-cmd", "serial":
		return SerialCmd, nil
	case "parallel-cmd", "parallel":
		return ParallelCmd, nil
	default:
		return KindUnknown, fmt.Errorf("%w '%s'", ErrUnknownStageType, s)
	}
}

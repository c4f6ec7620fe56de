package testutil

import (
	"time"

	"github.com/specialistvlad/proofgridgo/internal/process"
)

// ExecutionRecord holds the command and the start and end times of a single
// fake process execution.
type ExecutionRecord struct {
	Cmd   process.Cmd
	Start time.Time
	End   time.Time
}

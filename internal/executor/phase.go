package executor

// Phase is the lifecycle position of one plan run.
type Phase int32

const (
	Pending Phase = iota
	Initializing
	Running
	Collecting
	Finalizing
	Succeeded
	// SucceededWithCleanupFailure means the plan produced its result but its
	// finally hook failed, so resources may have leaked.
	SucceededWithCleanupFailure
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Collecting:
		return "collecting"
	case Finalizing:
		return "finalizing"
	case Succeeded:
		return "succeeded"
	case SucceededWithCleanupFailure:
		return "succeeded_with_cleanup_failure"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has ended.
func (p Phase) Terminal() bool {
	return p == Succeeded || p == SucceededWithCleanupFailure || p == Failed
}

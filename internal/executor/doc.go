// Package executor runs computation plans against a process pool.
//
// Every call to Execute is two runs through the same lifecycle: first the
// platform detection plan, then the caller's plan, seeded with the features
// the first run produced. Each run moves through the phases
// Pending → Initializing → Running → Collecting → Finalizing and ends as
// Succeeded, SucceededWithCleanupFailure or Failed. The finally hook runs from
// every phase, at most once per run, including when Terminate is called
// during shutdown.
package executor

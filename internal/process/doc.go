// Package process describes a single external program invocation and its
// outcome, and provides the Runner that turns one into the other.
//
// A Cmd is an immutable value. It may be wrapped for NUMA binding
// (see Cmd.WrapNuma) without losing its log redaction rules. An Output is
// created exactly once, when the child exits or fails to start.
package process

/*
Package builder compiles declarative plan definitions (the config model) into
executable plan.Plan values.

A compiled plan runs over a State holding the detected platform features, the
plan input and a set of named vars. Every expression in the definition is
evaluated lazily, when its stage starts, against:

  - platform: os, arch, kernel, numactl, numa_nodes (null when unknown) and
    numa_degraded
  - input: the plan input
  - vars: every value captured so far through `into`
  - each: key and value of the current for_each element

Captured command results are objects with code, stdout, stderr and failed.
Handlers are resolved from the registry at compile time, so a plan naming an
unknown handler never starts.
*/
package builder

// Package config defines the format-agnostic model of declarative plans,
// along with the Loader interface that produces it.
//
// The model keeps every dynamic value as an unevaluated hcl.Expression; the
// builder package evaluates them against the plan state when a stage starts.
// Concrete loaders, such as the HCL one, live in separate packages.
package config

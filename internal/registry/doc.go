// Package registry provides the central "glue" for the module system.
//
// The Registry maps the names used on the command line and in plan files to
// compiled Go code: runnable plans (built-in Go plans and declarative ones
// compiled from HCL) and handlers, the named functions that declarative
// main-thread stages, init and finally hooks call.
//
// Modules fill the registry at startup; Validate then checks that every
// declarative plan only references handlers that exist.
package registry

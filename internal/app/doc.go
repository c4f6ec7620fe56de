// Package app contains the core application logic. It wires the registry,
// the executor and the status server together and runs one plan against an
// input file, decoupled from any specific entrypoint like a CLI.
package app

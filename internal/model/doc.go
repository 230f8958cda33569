// Package model defines the domain types and value objects for the
// caro-build CLI.
//
// This package contains plain data structures with no dependencies on the
// rest of the module. Options is the single configuration value produced
// from command-line flags and the project config file; it is built once
// per invocation and passed by value to the build pipeline.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes up to the process boundary.
package model

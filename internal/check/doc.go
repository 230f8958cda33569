// Package check runs the optional source checks of a caro build:
// clang-format in check-only mode and clang-tidy against the compile
// database.
//
// Neither check rewrites sources. A formatter that would change a file,
// or an analyzer warning promoted to an error, fails the step with the
// tool's own exit status.
package check

package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// BuildType is the CMake configuration mode passed as CMAKE_BUILD_TYPE.
// It controls optimization and debug-symbol flags of the generated build.
type BuildType string

const (
	// BuildDebug builds without optimizations and with debug symbols.
	BuildDebug BuildType = "Debug"

	// BuildRelease builds with optimizations enabled.
	BuildRelease BuildType = "Release"
)

// String returns the CMake spelling of the build type.
func (b BuildType) String() string {
	return string(b)
}

// IsValid checks whether the BuildType is one of the supported modes.
func (b BuildType) IsValid() bool {
	switch b {
	case BuildDebug, BuildRelease:
		return true
	default:
		return false
	}
}

// ParseBuildType converts a string to a BuildType. Matching is
// case-insensitive, so "release" and "RELEASE" both yield BuildRelease.
func ParseBuildType(s string) (BuildType, error) {
	switch strings.ToLower(s) {
	case "debug":
		return BuildDebug, nil
	case "release":
		return BuildRelease, nil
	}
	return "", fmt.Errorf("invalid build type: %q (valid: Debug, Release)", s)
}

// Options is the complete configuration of a single caro-build run.
//
// All paths are absolute. The struct is populated once by the CLI layer
// (flags > environment > project config file > defaults) and then treated
// as read-only.
type Options struct {
	// ProjectRoot is the top-level directory of the caro checkout.
	ProjectRoot string

	// BuildDir is the CMake binary directory (default: <root>/build).
	BuildDir string

	// BuildType selects Debug or Release. When both --debug and --release
	// are given, the flag parsed last wins.
	BuildType BuildType

	// Jobs is the parallelism handed to the build tool. It is passed
	// through verbatim, without parsing or range validation; the build
	// tool decides what it accepts.
	Jobs string

	// Clean removes BuildDir before configuring.
	Clean bool

	// Format runs the formatter in check-only mode before building.
	Format bool

	// Lint runs the static analyzer after building.
	Lint bool

	// DryRun logs commands instead of executing them and skips every
	// filesystem mutation.
	DryRun bool

	// Verbose enables debug-level logging.
	Verbose bool

	// Generator is the CMake generator name (default: "Ninja").
	Generator string

	// CMakeArgs are extra arguments appended to the configure command.
	CMakeArgs []string

	// Sentinels are files (relative to ProjectRoot) whose presence proves
	// that the git submodules have been checked out.
	Sentinels []string

	// ToolSuffixes are the version suffixes probed when resolving
	// clang-format and clang-tidy ("" means the unsuffixed binary).
	ToolSuffixes []string

	// MinToolVersion optionally rejects clang tools older than this
	// semantic version. Empty disables the check.
	MinToolVersion string

	// FormatPatterns are the globs (relative to ProjectRoot) checked by
	// the formatter.
	FormatPatterns []string

	// LintPatterns are the globs (relative to ProjectRoot) checked by
	// the static analyzer.
	LintPatterns []string
}

// CompileDatabasePath returns the path of the compile database generated
// inside the build directory.
func (o Options) CompileDatabasePath() string {
	return filepath.Join(o.BuildDir, CompileDatabaseName)
}

// CompileDatabaseName is the file name CMake uses for the exported
// compile database.
const CompileDatabaseName = "compile_commands.json"

// ExitCode defines the process exit codes of the CLI. Failed external
// commands propagate their own exit status instead of one of these.
type ExitCode int

const (
	// ExitSuccess indicates the run completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitUsage indicates an unknown option or stray argument.
	ExitUsage ExitCode = 1

	// ExitToolNotFound indicates that clang-format or clang-tidy could not
	// be found under any of the probed names.
	ExitToolNotFound ExitCode = 1
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ExitStatus maps an error returned by the CLI to a process exit status.
// nil maps to 0, a CLIError to its code, anything else to 1. A CLIError
// that somehow carries code 0 still maps to 1 so that failures are never
// reported as success.
func ExitStatus(err error) int {
	if err == nil {
		return int(ExitSuccess)
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Code != ExitSuccess {
		return int(cliErr.Code)
	}
	return int(ExitGeneralError)
}

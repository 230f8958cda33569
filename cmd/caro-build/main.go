// Package main is the entry point for the caro-build CLI.
//
// caro-build configures and builds the caro engine with CMake and Ninja.
// All functionality lives in internal/cli and the packages below it.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release build. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"github.com/shinji-kodama/caro-build/internal/cli"
)

// version, commit, and date are set at build time via ldflags
// (-X main.version=...). They back the --version output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}

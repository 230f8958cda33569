// Package cli implements the caro-build command line.
//
// caro-build has no subcommands: the root command parses the build flags,
// resolves the project root and the optional project file into a
// model.Options value, and hands it to the build pipeline. This file
// defines the command and the process exit handling; flags.go defines
// the flag set and how it becomes Options.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
	"github.com/shinji-kodama/caro-build/internal/pipeline"
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// RunFunc executes a build. The context carries the run's logger.
type RunFunc func(ctx context.Context, opts model.Options) error

// NewRootCommand creates the caro-build command wired to the real build
// pipeline.
func NewRootCommand() *cobra.Command {
	return newRootCommand(runBuild)
}

// newRootCommand creates the command with an injectable build function,
// which lets tests observe the parsed Options without running anything.
func newRootCommand(run RunFunc) *cobra.Command {
	flags := &buildFlags{}

	rootCmd := &cobra.Command{
		Use:   "caro-build [flags]",
		Short: "Configure and build caro with CMake and Ninja",
		Long: `caro-build configures and builds the caro engine.

It makes sure the Vulkan submodules are checked out, runs CMake with the
Ninja generator, builds with the requested parallelism, and copies
compile_commands.json to the project root for editors and clang tools.
With --format and --lint it also checks the sources with clang-format and
clang-tidy, looking for versioned binaries (clang-format-19, ...) when the
plain names are not installed.`,
		Example: `  caro-build                 # debug build
  caro-build --release -j 16
  caro-build --clean --format --lint`,

		// Errors are printed by Execute with the "Error: " prefix; usage
		// is only shown for --help.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		Args: rejectArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, cfgPath, err := flags.options(cmd)
			if err != nil {
				return err
			}

			logger := console.New(cmd.OutOrStdout(), opts.Verbose)
			ctx := console.WithLogger(cmd.Context(), &logger)
			if cfgPath != "" {
				logger.Debug().Str(console.FieldPath, cfgPath).Msgf("using %s", cfgPath)
			}
			return run(ctx, opts)
		},
	}

	flags.register(rootCmd)
	rootCmd.SetFlagErrorFunc(flagError)
	return rootCmd
}

func runBuild(ctx context.Context, opts model.Options) error {
	p, err := pipeline.New(opts, nil)
	if err != nil {
		return err
	}
	return p.Run(ctx, opts)
}

// Execute runs the root command and exits the process with the status
// derived from the returned error. SIGINT and SIGTERM cancel the running
// step.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, rootCmd, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs rootCmd, prints a failure to stderr and returns the exit
// status.
func execute(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return int(model.ExitSuccess)
	}

	verbose, _ := rootCmd.Flags().GetBool("verbose")
	printError(stderr, err, verbose)
	return model.ExitStatus(err)
}

// printError writes "Error: <message>" to w. The cause of a CLIError is
// appended unless it is the exit status of a child process, which has
// already printed its own diagnostics. Verbose mode adds the stack trace.
func printError(w io.Writer, err error, verbose bool) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Error: interrupted")
		return
	}

	var cliErr *model.CLIError
	if !errors.As(err, &cliErr) {
		fmt.Fprintf(w, "Error: %s\n", err)
		if verbose {
			fmt.Fprintln(w, eris.ToString(err, true))
		}
		return
	}

	var exitErr *exec.ExitError
	if cliErr.Err == nil || errors.As(cliErr.Err, &exitErr) {
		fmt.Fprintf(w, "Error: %s\n", cliErr.Message)
		return
	}

	fmt.Fprintf(w, "Error: %s: %v\n", cliErr.Message, cliErr.Err)
	if verbose {
		fmt.Fprintln(w, eris.ToString(cliErr.Err, true))
	}
}

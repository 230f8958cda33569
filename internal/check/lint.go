package check

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
	"github.com/shinji-kodama/caro-build/internal/runner"
	"github.com/shinji-kodama/caro-build/internal/toolchain"
)

// LintFailure records a file clang-tidy rejected.
type LintFailure struct {
	File string
	Err  error
}

// Lint runs clang-tidy on every file using the compile database in
// buildDir. All files are analyzed even after a failure so that every
// offending file is reported; the step then fails with the exit status
// of the first failure. A cancelled context stops immediately.
func (c *Checker) Lint(ctx context.Context, tool *toolchain.Tool, buildDir string, files []string) ([]LintFailure, error) {
	log := console.Logger(ctx)
	if len(files) == 0 {
		log.Warn().Str(console.FieldTool, tool.Name).Msg("no files matched, skipping")
		return nil, nil
	}

	log.Info().Str(console.FieldTool, tool.Name).Msgf("analyzing %d file(s) with %s", len(files), tool)
	bar := c.progressBar(len(files), tool.Name)

	var failures []LintFailure
	for _, file := range files {
		err := c.Runner.Run(ctx, runner.Command{
			Name: tool.Path,
			Args: []string{"-p", buildDir, "--quiet", file},
			Dir:  c.Root,
		})
		_ = bar.Add(1)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return failures, ctxErr
		}
		if err != nil {
			failures = append(failures, LintFailure{File: file, Err: err})
		}
	}
	_ = bar.Finish()

	if len(failures) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(failures))
	for _, f := range failures {
		log.Error().Str(console.FieldTool, tool.Name).Str(console.FieldPath, f.File).Msgf("%s failed", f.File)
		names = append(names, f.File)
	}

	first := failures[0].Err
	return failures, model.WrapCLIError(
		model.ExitCode(model.ExitStatus(first)),
		fmt.Sprintf("%s reported problems in %d file(s)", tool.Command, len(failures)),
		eris.New(strings.Join(names, ", ")),
	)
}

// progressBar creates the lint progress bar. It is invisible when no
// writer is configured or when running under CI, where the redraws only
// add noise to the log.
func (c *Checker) progressBar(total int, desc string) *progressbar.ProgressBar {
	if c.Progress == nil || os.Getenv("CI") == "true" {
		return progressbar.NewOptions(total, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.Progress),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(c.Progress, "\n")
		}),
	)
}

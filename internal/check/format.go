package check

import (
	"context"
	"io"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/runner"
	"github.com/shinji-kodama/caro-build/internal/toolchain"
)

// formatBatchSize bounds the number of files per clang-format invocation
// to stay below command-line length limits.
const formatBatchSize = 200

// Checker runs format and lint checks through a runner.Runner.
type Checker struct {
	// Runner executes the tools.
	Runner runner.Runner

	// Root is the project root; tools run from there.
	Root string

	// Progress receives the lint progress bar. nil hides it.
	Progress io.Writer
}

// NewChecker creates a Checker for the project at root.
func NewChecker(r runner.Runner, root string, progress io.Writer) *Checker {
	return &Checker{Runner: r, Root: root, Progress: progress}
}

// Format runs `clang-format --dry-run --Werror` over files. Any file that
// would be reformatted makes clang-format exit non-zero, which is
// returned unchanged.
func (c *Checker) Format(ctx context.Context, tool *toolchain.Tool, files []string) error {
	log := console.Logger(ctx)
	if len(files) == 0 {
		log.Warn().Str(console.FieldTool, tool.Name).Msg("no files matched, skipping")
		return nil
	}

	log.Info().Str(console.FieldTool, tool.Name).Msgf("checking %d file(s) with %s", len(files), tool)
	for start := 0; start < len(files); start += formatBatchSize {
		end := start + formatBatchSize
		if end > len(files) {
			end = len(files)
		}

		args := append([]string{"--dry-run", "--Werror"}, files[start:end]...)
		if err := c.Runner.Run(ctx, runner.Command{Name: tool.Path, Args: args, Dir: c.Root}); err != nil {
			return err
		}
	}
	return nil
}

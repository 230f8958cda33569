// Package pipeline runs a caro build from start to finish.
//
// The steps always run in the same order:
//
//  1. resolve clang-format / clang-tidy (only those a requested check needs)
//  2. initialize git submodules when none are checked out
//  3. format check (--format)
//  4. remove the build directory (--clean)
//  5. cmake configure
//  6. cmake build
//  7. copy compile_commands.json to the project root
//  8. lint (--lint)
//
// The first failing step ends the run and its error is returned
// unchanged, so a failing child process keeps its exit status. Tools are
// resolved before anything touches the tree: a missing formatter never
// leaves a half-cleaned build directory behind.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/shinji-kodama/caro-build/internal/check"
	"github.com/shinji-kodama/caro-build/internal/cmake"
	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/git"
	"github.com/shinji-kodama/caro-build/internal/model"
	"github.com/shinji-kodama/caro-build/internal/runner"
	"github.com/shinji-kodama/caro-build/internal/sources"
	"github.com/shinji-kodama/caro-build/internal/toolchain"
)

// ToolFinder resolves the clang tools. *toolchain.Finder implements it.
type ToolFinder interface {
	Find(ctx context.Context, name string) (*toolchain.Tool, error)
	Version(ctx context.Context, tool *toolchain.Tool) (*semver.Version, error)
}

// Pipeline holds the collaborators of a build run.
type Pipeline struct {
	Finder     ToolFinder
	Submodules *git.Manager
	Builder    *cmake.Builder
	Checker    *check.Checker
}

// New wires a Pipeline for opts. Commands go through r; pass nil to get
// an ExecRunner, or a dry-run Recorder when opts.DryRun is set.
func New(opts model.Options, r runner.Runner) (*Pipeline, error) {
	if !opts.BuildType.IsValid() {
		return nil, model.NewCLIError(model.ExitUsage, fmt.Sprintf("invalid build type %q (valid: Debug, Release)", opts.BuildType))
	}

	if r == nil {
		if opts.DryRun {
			r = runner.NewDryRunner()
		} else {
			r = runner.NewExecRunner()
		}
	}

	finder, err := toolchain.NewFinder(opts.ToolSuffixes, opts.MinToolVersion)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid toolchain settings", err)
	}

	// The progress bar would interleave with debug output.
	var progress io.Writer = os.Stderr
	if opts.Verbose {
		progress = nil
	}

	submodules := git.NewManager(r)
	submodules.Verbose = opts.Verbose

	return &Pipeline{
		Finder:     finder,
		Submodules: submodules,
		Builder:    cmake.NewBuilder(r, opts.DryRun),
		Checker:    check.NewChecker(r, opts.ProjectRoot, progress),
	}, nil
}

// tools are the clang tools resolved for a run; nil when not needed.
type tools struct {
	format *toolchain.Tool
	tidy   *toolchain.Tool
}

// Run executes the build described by opts.
func (p *Pipeline) Run(ctx context.Context, opts model.Options) error {
	log := console.Logger(ctx)
	log.Debug().
		Str(console.FieldPath, opts.ProjectRoot).
		Str("buildDir", opts.BuildDir).
		Str("buildType", opts.BuildType.String()).
		Str("jobs", opts.Jobs).
		Msg("starting build")

	t, err := p.resolveTools(ctx, opts)
	if err != nil {
		return err
	}

	console.Step(ctx, "Checking git submodules")
	if _, err := p.Submodules.EnsureSubmodules(ctx, opts.ProjectRoot, opts.Sentinels); err != nil {
		return err
	}

	if opts.Format {
		console.Step(ctx, "Checking formatting")
		if err := p.format(ctx, opts, t.format); err != nil {
			return err
		}
	}

	if opts.Clean {
		console.Step(ctx, "Cleaning %s", opts.BuildDir)
		if err := p.Builder.Clean(ctx, opts.BuildDir); err != nil {
			return err
		}
	}

	console.Step(ctx, "Configuring (%s)", opts.BuildType)
	if err := p.Builder.Configure(ctx, opts); err != nil {
		return err
	}

	console.Step(ctx, "Building with %s job(s)", opts.Jobs)
	if err := p.Builder.Build(ctx, opts); err != nil {
		return err
	}

	console.Step(ctx, "Copying compile database")
	if _, err := p.Builder.CopyCompileDatabase(ctx, opts.BuildDir, opts.ProjectRoot); err != nil {
		return err
	}

	if opts.Lint {
		console.Step(ctx, "Running static analysis")
		if err := p.lint(ctx, opts, t.tidy); err != nil {
			return err
		}
	}

	console.Step(ctx, "Build finished (%s)", opts.BuildType)
	return nil
}

func (p *Pipeline) resolveTools(ctx context.Context, opts model.Options) (tools, error) {
	var t tools
	var err error

	if opts.Format {
		if t.format, err = p.findTool(ctx, toolchain.ClangFormat, opts.Verbose); err != nil {
			return t, err
		}
	}
	if opts.Lint {
		if t.tidy, err = p.findTool(ctx, toolchain.ClangTidy, opts.Verbose); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (p *Pipeline) findTool(ctx context.Context, name string, verbose bool) (*toolchain.Tool, error) {
	tool, err := p.Finder.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if verbose {
		if _, err := p.Finder.Version(ctx, tool); err != nil {
			console.Logger(ctx).Debug().Err(err).Str(console.FieldTool, name).Msg("cannot determine version")
		}
	}
	return tool, nil
}

func (p *Pipeline) format(ctx context.Context, opts model.Options, tool *toolchain.Tool) error {
	files, err := sources.Expand(opts.ProjectRoot, opts.FormatPatterns)
	if err != nil {
		return err
	}
	logFiles(ctx, opts.ProjectRoot, files)
	return p.Checker.Format(ctx, tool, files)
}

func (p *Pipeline) lint(ctx context.Context, opts model.Options, tool *toolchain.Tool) error {
	log := console.Logger(ctx)

	cfg, err := check.LoadTidyConfig(opts.ProjectRoot)
	if err != nil {
		return err
	}
	if cfg != nil {
		log.Info().Str(console.FieldTool, tool.Name).
			Msgf("%s: %d enabled check group(s), warnings as errors: %s",
				check.TidyConfigName, len(cfg.Enabled()), orNone(cfg.WarningsAsErrors))
		log.Debug().Str(console.FieldTool, tool.Name).Msgf("checks: %s", strings.Join(cfg.Enabled(), ", "))
		if cfg.HeaderFilterRegex != "" {
			log.Debug().Str(console.FieldTool, tool.Name).Msgf("header filter: %s", cfg.HeaderFilterRegex)
		}
		if !cfg.PromotesWarnings() {
			log.Warn().Str(console.FieldTool, tool.Name).
				Msgf("%s promotes no warnings to errors; only clang-tidy errors can fail this step", check.TidyConfigName)
		}
	}

	files, err := sources.Expand(opts.ProjectRoot, opts.LintPatterns)
	if err != nil {
		return err
	}
	logFiles(ctx, opts.ProjectRoot, files)

	// In a dry run the database was never generated.
	if !opts.DryRun && len(files) > 0 {
		db, err := cmake.LoadCompileDatabase(opts.CompileDatabasePath())
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "compile database unavailable", err)
		}
		for _, missing := range sources.Relative(opts.ProjectRoot, db.Missing(files)) {
			log.Warn().Str(console.FieldTool, tool.Name).Str(console.FieldPath, missing).
				Msgf("%s is not in the compile database", missing)
		}
	}

	_, err = p.Checker.Lint(ctx, tool, opts.BuildDir, files)
	return err
}

func logFiles(ctx context.Context, root string, files []string) {
	log := console.Logger(ctx)
	for _, file := range sources.Relative(root, files) {
		log.Debug().Str(console.FieldPath, file).Msg(file)
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return strings.TrimSpace(s)
}

// Package cmake drives the CMake configure and build steps of a caro
// build and manages the build directory and its compile database.
package cmake

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
	"github.com/shinji-kodama/caro-build/internal/runner"
)

// DefaultGenerator is the CMake generator used when none is configured.
const DefaultGenerator = "Ninja"

// Builder runs CMake through a runner.Runner.
type Builder struct {
	// Runner executes the cmake commands.
	Runner runner.Runner

	// CMake is the cmake executable (default "cmake").
	CMake string

	// DryRun turns filesystem mutations (clean, database copy) into log
	// messages.
	DryRun bool
}

// NewBuilder creates a Builder executing commands through r.
func NewBuilder(r runner.Runner, dryRun bool) *Builder {
	return &Builder{Runner: r, CMake: "cmake", DryRun: dryRun}
}

// Clean removes the build directory. A directory that does not exist is
// not an error.
func (b *Builder) Clean(ctx context.Context, buildDir string) error {
	log := console.Logger(ctx)

	if _, err := os.Stat(buildDir); errors.Is(err, os.ErrNotExist) {
		log.Info().Str(console.FieldPath, buildDir).Msgf("%s does not exist, nothing to clean", buildDir)
		return nil
	}

	if b.DryRun {
		log.Info().Str(console.FieldPath, buildDir).Msgf("[dry-run] would remove %s", buildDir)
		return nil
	}

	log.Info().Str(console.FieldPath, buildDir).Msgf("Removing %s", buildDir)
	if err := os.RemoveAll(buildDir); err != nil {
		return eris.Wrapf(err, "failed to remove %s", buildDir)
	}
	return nil
}

// ConfigureArgs returns the arguments of the configure command.
func ConfigureArgs(opts model.Options) []string {
	generator := opts.Generator
	if generator == "" {
		generator = DefaultGenerator
	}

	args := []string{
		"-S", opts.ProjectRoot,
		"-B", opts.BuildDir,
		"-G", generator,
		"-DCMAKE_BUILD_TYPE=" + opts.BuildType.String(),
		"-DCMAKE_EXPORT_COMPILE_COMMANDS=ON",
	}
	return append(args, opts.CMakeArgs...)
}

// BuildArgs returns the arguments of the build command. The job count is
// handed to the build tool as given.
func BuildArgs(opts model.Options) []string {
	return []string{"--build", opts.BuildDir, "--parallel", opts.Jobs}
}

// Configure generates the build system in opts.BuildDir.
func (b *Builder) Configure(ctx context.Context, opts model.Options) error {
	return b.Runner.Run(ctx, runner.Command{
		Name: b.cmake(),
		Args: ConfigureArgs(opts),
		Dir:  opts.ProjectRoot,
	})
}

// Build compiles the configured project.
func (b *Builder) Build(ctx context.Context, opts model.Options) error {
	return b.Runner.Run(ctx, runner.Command{
		Name: b.cmake(),
		Args: BuildArgs(opts),
		Dir:  opts.ProjectRoot,
	})
}

func (b *Builder) cmake() string {
	if b.CMake == "" {
		return "cmake"
	}
	return b.CMake
}

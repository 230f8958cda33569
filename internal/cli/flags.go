package cli

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shinji-kodama/caro-build/internal/config"
	"github.com/shinji-kodama/caro-build/internal/git"
	"github.com/shinji-kodama/caro-build/internal/model"
)

// BuildDirEnv overrides the build directory when --build-dir is not given.
const BuildDirEnv = "BUILD_DIR"

// buildFlags holds the parsed command line.
type buildFlags struct {
	// buildType stays empty unless --debug or --release was given.
	buildType  model.BuildType
	jobs       string
	clean      bool
	format     bool
	lint       bool
	dryRun     bool
	verbose    bool
	buildDir   string
	configPath string
}

// register defines the flags on cmd.
func (f *buildFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()

	// --debug and --release write the same variable, so whichever is
	// parsed last wins.
	debug := fs.VarPF(&buildTypeFlag{target: &f.buildType, value: model.BuildDebug}, "debug", "", "Debug build (default unless the project file sets buildType)")
	debug.NoOptDefVal = "true"
	release := fs.VarPF(&buildTypeFlag{target: &f.buildType, value: model.BuildRelease}, "release", "", "Release build")
	release.NoOptDefVal = "true"

	fs.BoolVar(&f.clean, "clean", false, "Remove the build directory before configuring")
	fs.BoolVar(&f.format, "format", false, "Check formatting with clang-format (no files are changed)")
	fs.BoolVar(&f.lint, "lint", false, "Run clang-tidy with the compile database after building")
	fs.StringVarP(&f.jobs, "jobs", "j", strconv.Itoa(runtime.NumCPU()), "Number of parallel build jobs, passed to the build tool as given")
	fs.StringVar(&f.buildDir, "build-dir", "", "Build directory (default \"build\", env "+BuildDirEnv+")")
	fs.StringVar(&f.configPath, "config", "", "Project file (default: .caro-build.{yml,yaml,json,jsonc} in the project root)")
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "Print the commands without running them")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose output")
}

// options resolves the project root and project file and builds the
// Options of the run. It also returns the project file path, if any.
//
// The build directory is taken from --build-dir, then BUILD_DIR, then
// the project file, then "build". Relative values are relative to the
// project root. The build type follows the last of --debug/--release,
// then the project file, then Debug.
func (f *buildFlags) options(cmd *cobra.Command) (model.Options, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return model.Options{}, "", model.WrapCLIError(model.ExitGeneralError, "cannot determine working directory", err)
	}

	root, err := git.FindRoot(cwd)
	if err != nil {
		root = cwd
	}

	cfg, cfgPath, err := config.Resolve(root, f.configPath)
	if err != nil {
		return model.Options{}, "", err
	}

	opts := model.Options{
		ProjectRoot: root,
		BuildType:   model.BuildDebug,
		Jobs:        f.jobs,
		Clean:       f.clean,
		Format:      f.format,
		Lint:        f.lint,
		DryRun:      f.dryRun,
		Verbose:     f.verbose,
	}
	cfg.Apply(&opts)
	if f.buildType.IsValid() {
		opts.BuildType = f.buildType
	}

	buildDir := ""
	if cmd.Flags().Changed("build-dir") {
		buildDir = f.buildDir
	} else if env := os.Getenv(BuildDirEnv); env != "" {
		buildDir = env
	}
	if buildDir != "" {
		if !filepath.IsAbs(buildDir) {
			buildDir = filepath.Join(root, buildDir)
		}
		opts.BuildDir = filepath.Clean(buildDir)
	}

	return opts, cfgPath, nil
}

// buildTypeFlag is a boolean flag that selects a build type when set.
type buildTypeFlag struct {
	target *model.BuildType
	value  model.BuildType
}

func (b *buildTypeFlag) String() string {
	if b.target == nil {
		return "false"
	}
	return strconv.FormatBool(*b.target == b.value)
}

// Set selects the build type for "true". "false" leaves the current
// selection alone.
func (b *buildTypeFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if v {
		*b.target = b.value
	}
	return nil
}

func (b *buildTypeFlag) Type() string {
	return "bool"
}

// rejectArgs refuses positional arguments; caro-build only takes flags.
func rejectArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return model.NewCLIError(model.ExitUsage, "unknown option: "+args[0])
	}
	return nil
}

// flagError turns flag parsing errors into usage errors. A --help seen
// before the bad flag still wins: returning pflag.ErrHelp makes cobra
// print the help text and succeed.
func flagError(cmd *cobra.Command, err error) error {
	if help := cmd.Flags().Lookup("help"); help != nil && help.Changed {
		return pflag.ErrHelp
	}
	return model.NewCLIError(model.ExitUsage, usageMessage(err))
}

// usageMessage rewrites pflag's unknown flag errors as
// "unknown option: <flag>".
//
// pflag reports "unknown flag: --bogus" and
// "unknown shorthand flag: 'x' in -xj4".
func usageMessage(err error) string {
	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return "unknown option: " + name
	}
	if rest, ok := strings.CutPrefix(msg, "unknown shorthand flag: "); ok {
		if len(rest) >= 3 && rest[0] == '\'' {
			if end := strings.IndexByte(rest[1:], '\''); end > 0 {
				return "unknown option: -" + rest[1:1+end]
			}
		}
		return "unknown option: " + rest
	}
	return msg
}

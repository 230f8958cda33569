// Package toolchain resolves the versioned LLVM tools used by the format
// and lint steps.
//
// Distributions install clang-format and clang-tidy either unsuffixed or
// with a major-version suffix (clang-format-18, clang-tidy-19, ...). The
// Finder probes every candidate name on PATH in a fixed order and returns
// the first usable one. An optional minimum version rejects candidates
// whose --version output reports something older.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
)

// Tool names resolved by the pipeline.
const (
	ClangFormat = "clang-format"
	ClangTidy   = "clang-tidy"
)

// DefaultSuffixes is the probe order for tool names. The empty suffix
// stands for the unsuffixed binary.
var DefaultSuffixes = []string{"", "-18", "-19", "-21"}

// Tool is a resolved executable.
type Tool struct {
	// Name is the generic tool name, e.g. "clang-format".
	Name string

	// Command is the candidate name that matched, e.g. "clang-format-19".
	Command string

	// Path is the absolute path returned by the PATH lookup.
	Path string

	// Version is the version reported by the tool, if it was queried.
	Version *semver.Version
}

// String returns the matched command name and, when known, its version.
func (t *Tool) String() string {
	if t.Version != nil {
		return fmt.Sprintf("%s (%s)", t.Command, t.Version)
	}
	return t.Command
}

// Finder locates tools on PATH.
type Finder struct {
	// Suffixes is the probe order; see DefaultSuffixes.
	Suffixes []string

	// MinVersion rejects older candidates when non-nil.
	MinVersion *semver.Version

	// LookPath resolves a command name to a path (exec.LookPath).
	LookPath func(file string) (string, error)

	// VersionOutput returns the output of `<path> --version`.
	VersionOutput func(ctx context.Context, path string) (string, error)
}

// NewFinder creates a Finder probing the given suffixes. An empty
// suffix list falls back to DefaultSuffixes; an empty minVersion disables
// the version check.
func NewFinder(suffixes []string, minVersion string) (*Finder, error) {
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}

	f := &Finder{
		Suffixes:      suffixes,
		LookPath:      exec.LookPath,
		VersionOutput: versionOutput,
	}

	if minVersion != "" {
		v, err := semver.NewVersion(minVersion)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid minimum tool version %q", minVersion)
		}
		f.MinVersion = v
	}
	return f, nil
}

// Candidates returns the names probed for name, in order.
func Candidates(name string, suffixes []string) []string {
	names := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		names = append(names, name+suffix)
	}
	return names
}

// Find resolves name. When no candidate is usable it returns a CLIError
// with ExitToolNotFound listing every probed name.
func (f *Finder) Find(ctx context.Context, name string) (*Tool, error) {
	log := console.Logger(ctx)
	candidates := Candidates(name, f.Suffixes)

	for _, candidate := range candidates {
		path, err := f.LookPath(candidate)
		if err != nil {
			log.Debug().Str(console.FieldTool, name).Msgf("%s not on PATH", candidate)
			continue
		}

		tool := &Tool{Name: name, Command: candidate, Path: path}
		if f.MinVersion == nil {
			log.Debug().Str(console.FieldTool, name).Msgf("using %s", path)
			return tool, nil
		}

		out, err := f.VersionOutput(ctx, path)
		if err != nil {
			log.Debug().Err(err).Str(console.FieldTool, name).Msgf("cannot query version of %s", path)
			continue
		}
		version, err := ParseVersion(out)
		if err != nil {
			log.Debug().Err(err).Str(console.FieldTool, name).Msgf("cannot parse version of %s", path)
			continue
		}
		if version.LessThan(f.MinVersion) {
			log.Debug().Str(console.FieldTool, name).
				Msgf("skipping %s: version %s is older than %s", path, version, f.MinVersion)
			continue
		}

		tool.Version = version
		log.Debug().Str(console.FieldTool, name).Msgf("using %s (%s)", path, version)
		return tool, nil
	}

	message := fmt.Sprintf("%s not found (tried: %s)", name, strings.Join(candidates, ", "))
	if f.MinVersion != nil {
		message = fmt.Sprintf("%s >= %s not found (tried: %s)", name, f.MinVersion, strings.Join(candidates, ", "))
	}
	return nil, model.NewCLIError(model.ExitToolNotFound, message)
}

// Version queries `<tool> --version`, stores the result in tool.Version
// and logs it. A tool whose version is already known is not run again.
func (f *Finder) Version(ctx context.Context, tool *Tool) (*semver.Version, error) {
	if tool.Version != nil {
		return tool.Version, nil
	}

	out, err := f.VersionOutput(ctx, tool.Path)
	if err != nil {
		return nil, err
	}
	version, err := ParseVersion(out)
	if err != nil {
		return nil, err
	}

	tool.Version = version
	console.Logger(ctx).Info().Str(console.FieldTool, tool.Name).Msgf("%s %s", tool.Command, version)
	return version, nil
}

// versionPattern matches the version in outputs such as
// "Ubuntu clang-format version 18.1.3 (1ubuntu1)" or
// "LLVM (http://llvm.org/):\n  LLVM version 19.1.7".
var versionPattern = regexp.MustCompile(`version\s+(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the semantic version from a tool's --version
// output.
func ParseVersion(output string) (*semver.Version, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, eris.Errorf("no version found in %q", strings.TrimSpace(output))
	}
	return semver.NewVersion(m[1])
}

func versionOutput(ctx context.Context, path string) (string, error) {
	// #nosec G204 -- path comes from the PATH lookup above.
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", eris.Wrapf(err, "%s --version failed", path)
	}
	return string(out), nil
}

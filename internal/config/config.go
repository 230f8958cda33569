// Package config loads the optional caro-build project file.
//
// The file lives in the project root and is looked up under the names in
// FileNames, in order. YAML and JSON are both accepted; JSON files may
// carry comments and trailing commas (JSONC), which are stripped with
// github.com/tidwall/jsonc before decoding. Unknown keys are rejected so
// that a misspelled setting does not go unnoticed.
//
// Every key is optional. Keys that are absent or empty keep the value
// from Defaults.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/caro-build/internal/cmake"
	"github.com/shinji-kodama/caro-build/internal/git"
	"github.com/shinji-kodama/caro-build/internal/model"
	"github.com/shinji-kodama/caro-build/internal/sources"
	"github.com/shinji-kodama/caro-build/internal/toolchain"
)

// FileNames are the project file names, in lookup order.
var FileNames = []string{
	".caro-build.yml",
	".caro-build.yaml",
	".caro-build.json",
	".caro-build.jsonc",
}

// DefaultBuildDir is the build directory used when nothing else is set.
const DefaultBuildDir = "build"

// File is the content of a project file.
type File struct {
	// BuildDir is the build directory, relative to the project root.
	BuildDir string `yaml:"buildDir" json:"buildDir"`

	// BuildType is the build type used when neither --debug nor
	// --release is given: "Debug" (default) or "Release", any case.
	BuildType string `yaml:"buildType" json:"buildType"`

	// Generator is the CMake generator (default "Ninja").
	Generator string `yaml:"generator" json:"generator"`

	// CMakeArgs are appended to the configure command.
	CMakeArgs []string `yaml:"cmakeArgs" json:"cmakeArgs"`

	Submodules Submodules `yaml:"submodules" json:"submodules"`
	Toolchain  Toolchain  `yaml:"toolchain" json:"toolchain"`
	Sources    Sources    `yaml:"sources" json:"sources"`
}

// Submodules configures the submodule check.
type Submodules struct {
	// Sentinels are files, relative to the root, whose absence means the
	// submodules still need to be initialized.
	Sentinels []string `yaml:"sentinels" json:"sentinels"`
}

// Toolchain configures clang-format / clang-tidy resolution.
type Toolchain struct {
	// Suffixes is the probe order of version suffixes; "" is the
	// unsuffixed name.
	Suffixes []string `yaml:"suffixes" json:"suffixes"`

	// MinVersion is the oldest accepted tool version, e.g. "18".
	MinVersion string `yaml:"minVersion" json:"minVersion"`
}

// Sources holds the file patterns of the check steps.
type Sources struct {
	Format []string `yaml:"format" json:"format"`
	Lint   []string `yaml:"lint" json:"lint"`
}

// Defaults returns the settings used without a project file.
func Defaults() *File {
	return &File{
		BuildDir:  DefaultBuildDir,
		BuildType: model.BuildDebug.String(),
		Generator: cmake.DefaultGenerator,
		Submodules: Submodules{
			Sentinels: append([]string(nil), git.DefaultSentinels...),
		},
		Toolchain: Toolchain{
			Suffixes: append([]string(nil), toolchain.DefaultSuffixes...),
		},
		Sources: Sources{
			Format: append([]string(nil), sources.DefaultFormatPatterns...),
			Lint:   append([]string(nil), sources.DefaultLintPatterns...),
		},
	}
}

// Find returns the path of the first project file present in root, or
// "" when there is none.
func Find(root string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return "", eris.Errorf("%s is a directory", path)
			}
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", path)
		}
	}
	return "", nil
}

// Load reads the project file at path and merges it over Defaults. The
// format is chosen by extension: .yml/.yaml are YAML, anything else is
// JSON with comments allowed.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	var file File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = decodeYAML(data, &file)
	default:
		err = decodeJSON(data, &file)
	}
	if err == nil && file.BuildType != "" {
		var bt model.BuildType
		bt, err = model.ParseBuildType(file.BuildType)
		file.BuildType = bt.String()
	}
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("invalid config file %s", path),
			err,
		)
	}

	return Defaults().merge(&file), nil
}

// Resolve loads the explicit path when given, otherwise the project file
// found in root, otherwise Defaults. It also returns the path that was
// loaded ("" for defaults).
func Resolve(root, explicit string) (*File, string, error) {
	path := explicit
	if path == "" {
		found, err := Find(root)
		if err != nil {
			return nil, "", err
		}
		if found == "" {
			return Defaults(), "", nil
		}
		path = found
	}

	file, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func decodeYAML(data []byte, out *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeJSON(data []byte, out *File) error {
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// merge overlays the non-empty values of o onto f and returns f.
func (f *File) merge(o *File) *File {
	if o.BuildDir != "" {
		f.BuildDir = o.BuildDir
	}
	if o.BuildType != "" {
		f.BuildType = o.BuildType
	}
	if o.Generator != "" {
		f.Generator = o.Generator
	}
	if len(o.CMakeArgs) > 0 {
		f.CMakeArgs = o.CMakeArgs
	}
	if len(o.Submodules.Sentinels) > 0 {
		f.Submodules.Sentinels = o.Submodules.Sentinels
	}
	if len(o.Toolchain.Suffixes) > 0 {
		f.Toolchain.Suffixes = o.Toolchain.Suffixes
	}
	if o.Toolchain.MinVersion != "" {
		f.Toolchain.MinVersion = o.Toolchain.MinVersion
	}
	if len(o.Sources.Format) > 0 {
		f.Sources.Format = o.Sources.Format
	}
	if len(o.Sources.Lint) > 0 {
		f.Sources.Lint = o.Sources.Lint
	}
	return f
}

// Apply copies the file settings into opts. BuildDir is resolved against
// opts.ProjectRoot unless it is absolute. An unset or unknown BuildType
// leaves opts.BuildType alone.
func (f *File) Apply(opts *model.Options) {
	buildDir := f.BuildDir
	if buildDir == "" {
		buildDir = DefaultBuildDir
	}
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(opts.ProjectRoot, buildDir)
	}

	opts.BuildDir = buildDir
	if bt := model.BuildType(f.BuildType); bt.IsValid() {
		opts.BuildType = bt
	}
	opts.Generator = f.Generator
	opts.CMakeArgs = f.CMakeArgs
	opts.Sentinels = f.Submodules.Sentinels
	opts.ToolSuffixes = f.Toolchain.Suffixes
	opts.MinToolVersion = f.Toolchain.MinVersion
	opts.FormatPatterns = f.Sources.Format
	opts.LintPatterns = f.Sources.Lint
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/caro-build/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, "build", d.BuildDir)
	assert.Equal(t, "Ninja", d.Generator)
	assert.Equal(t, "Debug", d.BuildType)
	assert.Equal(t, []string{"", "-18", "-19", "-21"}, d.Toolchain.Suffixes)
	assert.Equal(t, []string{"src/**/*.{cpp,h,hpp}"}, d.Sources.Format)
	assert.Equal(t, []string{"src/**/*.cpp"}, d.Sources.Lint)
	assert.Len(t, d.Submodules.Sentinels, 2)
	assert.Empty(t, d.Toolchain.MinVersion)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".caro-build.yml", `
buildDir: out/ninja
buildType: release
cmakeArgs:
  - -DCARO_ENABLE_VALIDATION=ON
toolchain:
  suffixes: ["-19", ""]
  minVersion: "18"
sources:
  lint:
    - src/**/*.cpp
    - tools/**/*.cpp
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/ninja", f.BuildDir)
	assert.Equal(t, "Release", f.BuildType, "build type is normalized")
	assert.Equal(t, "Ninja", f.Generator, "unset keys keep their default")
	assert.Equal(t, []string{"-DCARO_ENABLE_VALIDATION=ON"}, f.CMakeArgs)
	assert.Equal(t, []string{"-19", ""}, f.Toolchain.Suffixes)
	assert.Equal(t, "18", f.Toolchain.MinVersion)
	assert.Equal(t, []string{"src/**/*.cpp", "tools/**/*.cpp"}, f.Sources.Lint)
	assert.Equal(t, []string{"src/**/*.{cpp,h,hpp}"}, f.Sources.Format)
}

// TestLoad_JSONC verifies that comments and trailing commas are accepted
// in JSON project files.
func TestLoad_JSONC(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".caro-build.jsonc", `{
  // Use make on machines without ninja.
  "generator": "Unix Makefiles",
  /* pinned submodule probe */
  "submodules": {"sentinels": ["external/Vulkan-Headers/CMakeLists.txt",]},
}`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Unix Makefiles", f.Generator)
	assert.Equal(t, []string{"external/Vulkan-Headers/CMakeLists.txt"}, f.Submodules.Sentinels)
	assert.Equal(t, "build", f.BuildDir)
}

func TestLoad_Empty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".caro-build.yaml", ".caro-build.json"} {
		t.Run(name, func(t *testing.T) {
			f, err := Load(writeFile(t, dir, name, ""))
			require.NoError(t, err)
			assert.Equal(t, Defaults(), f)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown yaml key", file: "a.yml", content: "buildDirectory: out\n"},
		{name: "unknown json key", file: "a.json", content: `{"jobs": 4}`},
		{name: "malformed yaml", file: "b.yaml", content: "cmakeArgs: [unterminated\n"},
		{name: "malformed json", file: "b.json", content: `{"buildDir": }`},
		{name: "wrong type", file: "c.yml", content: "cmakeArgs: 3\n"},
		{name: "unknown build type", file: "d.yml", content: "buildType: RelWithDebInfo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, tt.file, tt.content))
			require.Error(t, err)
			assert.Equal(t, 1, model.ExitStatus(err))
			assert.Contains(t, err.Error(), "invalid config file")
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

// TestFind verifies the lookup order of project file names.
func TestFind(t *testing.T) {
	dir := t.TempDir()

	path, err := Find(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	writeFile(t, dir, ".caro-build.json", "{}")
	path, err = Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".caro-build.json"), path)

	writeFile(t, dir, ".caro-build.yml", "")
	path, err = Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".caro-build.yml"), path)
}

func TestResolve(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		f, path, err := Resolve(t.TempDir(), "")
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Equal(t, Defaults(), f)
	})

	t.Run("explicit path wins over discovery", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".caro-build.yml", "buildDir: discovered\n")
		explicit := writeFile(t, dir, "ci.yml", "buildDir: explicit\n")

		f, path, err := Resolve(dir, explicit)
		require.NoError(t, err)
		assert.Equal(t, explicit, path)
		assert.Equal(t, "explicit", f.BuildDir)
	})

	t.Run("missing explicit path is an error", func(t *testing.T) {
		_, _, err := Resolve(t.TempDir(), "nope.yml")
		assert.Error(t, err)
	})
}

func TestFile_Apply(t *testing.T) {
	f := Defaults()
	f.CMakeArgs = []string{"-DFOO=1"}
	opts := model.Options{ProjectRoot: filepath.Join("/", "src", "caro")}

	f.Apply(&opts)
	assert.Equal(t, filepath.Join("/", "src", "caro", "build"), opts.BuildDir)
	assert.Equal(t, model.BuildDebug, opts.BuildType)
	assert.Equal(t, "Ninja", opts.Generator)
	assert.Equal(t, []string{"-DFOO=1"}, opts.CMakeArgs)
	assert.Equal(t, f.Sources.Lint, opts.LintPatterns)

	abs := filepath.Join("/", "tmp", "caro-build")
	f.BuildDir = abs
	f.Apply(&opts)
	assert.Equal(t, abs, opts.BuildDir)
}

func TestFile_Apply_BuildType(t *testing.T) {
	f := Defaults()
	f.BuildType = "Release"
	opts := model.Options{BuildType: model.BuildDebug}
	f.Apply(&opts)
	assert.Equal(t, model.BuildRelease, opts.BuildType)

	f.BuildType = "Profile"
	f.Apply(&opts)
	assert.Equal(t, model.BuildRelease, opts.BuildType, "unknown values are ignored")
}

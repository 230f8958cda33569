package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates empty files for every relative path under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

// TestExpand_DefaultPatterns verifies globstar and brace expansion with
// the patterns used by the format and lint steps.
func TestExpand_DefaultPatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/main.cpp",
		"src/app.h",
		"src/renderer/vulkan/device.cpp",
		"src/renderer/vulkan/device.hpp",
		"src/renderer/shader.glsl",
		"external/Vulkan-Hpp/vulkan.hpp",
		"tools/gen.cpp",
	)

	format, err := Expand(root, DefaultFormatPatterns)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/app.h",
		"src/main.cpp",
		"src/renderer/vulkan/device.cpp",
		"src/renderer/vulkan/device.hpp",
	}, Relative(root, format))

	lint, err := Expand(root, DefaultLintPatterns)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/main.cpp",
		"src/renderer/vulkan/device.cpp",
	}, Relative(root, lint))

	for _, f := range lint {
		assert.True(t, filepath.IsAbs(f), "%s should be absolute", f)
	}
}

func TestExpand_NoMatches(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "README.md")

	files, err := Expand(root, DefaultFormatPatterns)
	require.NoError(t, err)
	assert.Empty(t, files)
}

// TestExpand_Deduplicates checks that overlapping patterns list each file
// once.
func TestExpand_Deduplicates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/a.cpp", "src/b/c.cpp")

	files, err := Expand(root, []string{"src/**/*.cpp", "src/*.cpp", "src/a.cpp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.cpp", "src/b/c.cpp"}, Relative(root, files))
}

// TestExpand_RootWithShellCharacters ensures that characters in the root
// path are taken literally, including glob metacharacters.
func TestExpand_RootWithShellCharacters(t *testing.T) {
	dirs := []string{
		"plain",
		"my caro",
		"my caro [v2]",
		"br[v2]",
		"star*x",
		"what?",
		"it's",
		"{a,b}",
		"$HOME",
	}

	for _, dir := range dirs {
		t.Run(dir, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), dir)
			writeTree(t, root, "src/main.cpp", "src/gfx/device.cpp", "src/gfx/device.hpp")

			files, err := Expand(root, DefaultLintPatterns)
			require.NoError(t, err)
			assert.Equal(t, []string{
				filepath.Join(root, "src", "gfx", "device.cpp"),
				filepath.Join(root, "src", "main.cpp"),
			}, files)

			files, err = Expand(root, DefaultFormatPatterns)
			require.NoError(t, err)
			assert.Len(t, files, 3)
		})
	}
}

// TestExpand_IndependentOfWorkingDir checks that patterns resolve against
// the root, not the process working directory.
func TestExpand_IndependentOfWorkingDir(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/main.cpp")

	elsewhere := t.TempDir()
	writeTree(t, elsewhere, "src/other.cpp")
	chdir(t, elsewhere)

	files, err := Expand(root, DefaultLintPatterns)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src", "main.cpp")}, files)
}

func TestExpand_SkipsDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "weird.cpp"), 0o755))
	writeTree(t, root, "src/ok.cpp")

	files, err := Expand(root, []string{"src/*.cpp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/ok.cpp"}, Relative(root, files))
}

func TestExpand_RejectsAbsolutePattern(t *testing.T) {
	_, err := Expand(t.TempDir(), []string{"/etc/*.conf"})
	assert.Error(t, err)
}

func TestRelative_OutsideRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "repo")
	outside := filepath.Join(string(filepath.Separator), "elsewhere", "x.cpp")
	inside := filepath.Join(root, "src", "y.cpp")

	assert.Equal(t, []string{outside, "src/y.cpp"}, Relative(root, []string{outside, inside}))
}

// Package sources expands the file patterns checked by the format and
// lint steps.
//
// Patterns use shell syntax with globstar and brace expansion, e.g.
// "src/**/*.{cpp,h,hpp}", and are evaluated relative to the project root
// by the mvdan.cc/sh expander, so they behave the way they would in bash
// with `shopt -s globstar`.
package sources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// Default patterns for the format and lint steps.
var (
	DefaultFormatPatterns = []string{"src/**/*.{cpp,h,hpp}"}
	DefaultLintPatterns   = []string{"src/**/*.cpp"}
)

// Expand resolves patterns relative to root and returns the matching
// regular files as sorted, de-duplicated absolute paths. Patterns that
// match nothing contribute nothing.
func Expand(root string, patterns []string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", root)
	}

	// Globs are resolved against PWD, so the root itself is never parsed
	// as part of a pattern and may contain any character.
	cfg := &expand.Config{
		Env: expand.ListEnviron("PWD=" + root),
		ReadDir: func(dir string) ([]os.FileInfo, error) {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(root, dir)
			}
			return readDir(dir)
		},
		GlobStar: true,
	}
	parser := syntax.NewParser()

	seen := make(map[string]bool)
	var files []string
	for _, pattern := range withZeroDepth(patterns) {
		words, err := parseWords(parser, pattern)
		if err != nil {
			return nil, err
		}

		matches, err := expand.Fields(cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", pattern)
		}

		for _, match := range matches {
			// An unmatched glob comes back verbatim; only keep real files.
			path := filepath.FromSlash(match)
			if !filepath.IsAbs(path) {
				path = filepath.Join(root, path)
			}
			path = filepath.Clean(path)
			if seen[path] {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Relative rewrites files relative to root, leaving paths outside root
// untouched.
func Relative(root string, files []string) []string {
	out := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			out = append(out, file)
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// withZeroDepth adds, for every "**/" in a pattern, a variant without it
// so that "src/**/*.cpp" also matches files directly inside src.
func withZeroDepth(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		out = append(out, pattern)
		if strings.Contains(pattern, "**/") {
			out = append(out, strings.ReplaceAll(pattern, "**/", ""))
		}
	}
	return out
}

// parseWords parses a root-relative pattern into a single shell word.
func parseWords(parser *syntax.Parser, pattern string) ([]*syntax.Word, error) {
	if filepath.IsAbs(pattern) || strings.HasPrefix(pattern, "/") {
		return nil, eris.Errorf("pattern %s must be relative to the project root", pattern)
	}

	var words []*syntax.Word
	err := parser.Words(strings.NewReader(pattern), func(w *syntax.Word) bool {
		words = append(words, w)
		return true
	})
	if err != nil {
		return nil, eris.Wrapf(err, "invalid pattern %s", pattern)
	}
	if len(words) != 1 {
		return nil, eris.Errorf("pattern %s must be a single word", pattern)
	}
	return words, nil
}

func readDir(path string) ([]os.FileInfo, error) {
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

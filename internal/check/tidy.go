package check

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TidyConfigName is the clang-tidy configuration file looked up in the
// project root.
const TidyConfigName = ".clang-tidy"

// TidyConfig holds the parts of a .clang-tidy file worth reporting
// before a lint run.
type TidyConfig struct {
	Checks            string `yaml:"Checks"`
	WarningsAsErrors  string `yaml:"WarningsAsErrors"`
	HeaderFilterRegex string `yaml:"HeaderFilterRegex"`
}

// LoadTidyConfig reads <root>/.clang-tidy. A missing file yields
// (nil, nil): clang-tidy then falls back to its built-in defaults.
func LoadTidyConfig(root string) (*TidyConfig, error) {
	path := filepath.Join(root, TidyConfigName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	var cfg TidyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}
	return &cfg, nil
}

// CheckList splits a comma-separated clang-tidy check list, dropping
// blanks. Entries keep their leading '-' (disabled checks).
func CheckList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Enabled returns the enabled check globs.
func (c *TidyConfig) Enabled() []string {
	var out []string
	for _, check := range CheckList(c.Checks) {
		if !strings.HasPrefix(check, "-") {
			out = append(out, check)
		}
	}
	return out
}

// PromotesWarnings reports whether any warning is treated as an error,
// i.e. whether lint findings can fail the build.
func (c *TidyConfig) PromotesWarnings() bool {
	for _, check := range CheckList(c.WarningsAsErrors) {
		if !strings.HasPrefix(check, "-") {
			return true
		}
	}
	return false
}

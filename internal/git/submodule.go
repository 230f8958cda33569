package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
	"github.com/shinji-kodama/caro-build/internal/runner"
)

// DefaultSentinels are the files whose presence proves that the Vulkan
// submodules have been checked out.
var DefaultSentinels = []string{
	filepath.Join("external", "Vulkan-Headers", "CMakeLists.txt"),
	filepath.Join("external", "Vulkan-Hpp", "CMakeLists.txt"),
}

// SubmoduleState is the status marker printed by `git submodule status`.
type SubmoduleState string

const (
	// SubmoduleCurrent means the submodule is checked out at the recorded commit.
	SubmoduleCurrent SubmoduleState = "current"

	// SubmoduleUninitialized means the submodule has not been initialized.
	SubmoduleUninitialized SubmoduleState = "uninitialized"

	// SubmoduleModified means the checked-out commit differs from the recorded one.
	SubmoduleModified SubmoduleState = "modified"

	// SubmoduleConflict means the submodule has merge conflicts.
	SubmoduleConflict SubmoduleState = "conflict"
)

// Submodule is one entry of `git submodule status`.
//
// Example line:
//
//	-3f0b5a9c1d... external/Vulkan-Headers
//	 8e3c2f7e4a... external/Vulkan-Hpp (v1.3.280)
type Submodule struct {
	Path     string
	Commit   string
	Describe string
	State    SubmoduleState
}

// Manager runs submodule operations.
type Manager struct {
	// Runner executes the submodule update.
	Runner runner.Runner

	// Verbose lists the submodule states after an update.
	Verbose bool
}

// NewManager creates a Manager that executes commands through r.
func NewManager(r runner.Runner) *Manager {
	return &Manager{Runner: r}
}

// NeedsInit reports whether submodule initialization is required: only
// when every sentinel file is absent. A single present sentinel means the
// submodules were already checked out and initialization is skipped.
func NeedsInit(root string, sentinels []string) (bool, error) {
	if len(sentinels) == 0 {
		return false, nil
	}

	for _, sentinel := range sentinels {
		path := sentinel
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, sentinel)
		}

		_, err := os.Stat(path)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, eris.Wrapf(err, "failed to check %s", path)
		}
	}
	return true, nil
}

// EnsureSubmodules initializes the submodules of the checkout at root if
// NeedsInit says so. It reports whether initialization ran.
func (m *Manager) EnsureSubmodules(ctx context.Context, root string, sentinels []string) (bool, error) {
	log := console.Logger(ctx)

	needed, err := NeedsInit(root, sentinels)
	if err != nil {
		return false, err
	}
	if !needed {
		log.Info().Msg("Submodules already initialized")
		return false, nil
	}

	log.Info().Msg("Initializing git submodules")
	if err := m.UpdateSubmodules(ctx, root); err != nil {
		return true, err
	}

	if m.Verbose {
		subs, err := m.Submodules(root)
		if err != nil {
			log.Debug().Err(err).Msg("cannot list submodules")
		}
		for _, sub := range subs {
			log.Debug().Msgf("%s %s (%s)", sub.Path, sub.Commit, sub.State)
		}
	}
	return true, nil
}

// UpdateSubmodules runs `git submodule update --init --recursive` in root.
// Credential prompts are disabled: a submodule that needs authentication
// fails the step instead of blocking an unattended build.
func (m *Manager) UpdateSubmodules(ctx context.Context, root string) error {
	return m.Runner.Run(ctx, runner.Command{
		Name: "git",
		Args: []string{"-C", root, "submodule", "update", "--init", "--recursive"},
		Env:  []string{"GIT_TERMINAL_PROMPT=0"},
	})
}

// Submodules lists the submodules of the checkout at root.
func (m *Manager) Submodules(root string) ([]Submodule, error) {
	output, err := runGit(root, "submodule", "status")
	if err != nil {
		return nil, err
	}
	return parseSubmoduleStatus(output), nil
}

// IsCheckout reports whether path is the top of a Git working tree. The
// main checkout has a .git directory; worktrees and submodules have a
// .git file containing a "gitdir:" pointer.
func IsCheckout(path string) bool {
	gitPath := filepath.Join(path, ".git")

	info, err := os.Lstat(gitPath)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// FindRoot walks up from start to the nearest directory that is a Git
// checkout.
func FindRoot(start string) (string, error) {
	path, err := filepath.Abs(start)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", start)
	}

	for {
		if IsCheckout(path) {
			return path, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", eris.Errorf("no git checkout found above %s", start)
		}
		path = parent
	}
}

// runGit executes a git query in repoPath and returns its stdout. Failures
// become a CLIError that includes git's stderr.
func runGit(repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGeneralError, message, err)
	}

	return stdout.String(), nil
}

// parseSubmoduleStatus parses `git submodule status` output. The first
// column is a state marker (' ', '-', '+', 'U'), followed by the commit,
// the path and an optional "(describe)" suffix.
func parseSubmoduleStatus(output string) []Submodule {
	var subs []Submodule

	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		state := SubmoduleCurrent
		switch line[0] {
		case '-':
			state = SubmoduleUninitialized
		case '+':
			state = SubmoduleModified
		case 'U':
			state = SubmoduleConflict
		}

		fields := strings.Fields(line[1:])
		if len(fields) < 2 {
			continue
		}

		sub := Submodule{Commit: fields[0], Path: fields[1], State: state}
		if len(fields) > 2 {
			sub.Describe = strings.Trim(strings.Join(fields[2:], " "), "()")
		}
		subs = append(subs, sub)
	}
	return subs
}

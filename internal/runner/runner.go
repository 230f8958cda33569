// Package runner executes the external tools driven by caro-build
// (git, cmake, clang-format, clang-tidy).
//
// Commands are described by the Command value and executed through the
// Runner interface. ExecRunner runs them for real via os/exec; Recorder
// only records and logs them, which backs --dry-run and the tests of the
// packages built on top of this one.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/syntax"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
)

// Command describes a single external process invocation.
type Command struct {
	// Name is the executable, either a bare name resolved through PATH or
	// an absolute path.
	Name string

	// Args are the arguments passed to the executable.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra KEY=VALUE entries appended to the process
	// environment.
	Env []string
}

// String renders the command as a shell command line, quoting arguments
// where the shell would otherwise split or expand them.
func (c Command) String() string {
	call := &syntax.CallExpr{}
	for _, arg := range append([]string{c.Name}, c.Args...) {
		call.Args = append(call.Args, quoteWord(arg))
	}

	var sb strings.Builder
	printer := syntax.NewPrinter(syntax.Minify(true))
	if err := printer.Print(&sb, &syntax.Stmt{Cmd: call}); err != nil {
		return strings.Join(append([]string{c.Name}, c.Args...), " ")
	}
	return strings.TrimSpace(sb.String())
}

// quoteWord builds a shell word for s. Plain words stay literal, words
// with shell metacharacters are single-quoted, and words containing a
// single quote fall back to double quotes.
func quoteWord(s string) *syntax.Word {
	var part syntax.WordPart
	switch {
	case s != "" && strings.IndexFunc(s, needsQuoting) < 0:
		part = &syntax.Lit{Value: s}
	case !strings.Contains(s, "'"):
		part = &syntax.SglQuoted{Value: s}
	default:
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`").Replace(s)
		part = &syntax.DblQuoted{Parts: []syntax.WordPart{&syntax.Lit{Value: escaped}}}
	}
	return &syntax.Word{Parts: []syntax.WordPart{part}}
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:,+@%", r)
}

// Runner executes commands. Implementations block until the command has
// finished and report failures as errors; a command that exits non-zero
// yields a *model.CLIError carrying its exit status.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes, streaming their output.
type ExecRunner struct {
	// Stdout and Stderr receive the child's output. nil means the
	// corresponding stream of this process.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates a Runner that streams output to this process's
// stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	console.Logger(ctx).Info().Bool(console.FieldCommand, true).Msg(cmd.String())

	// #nosec G204 -- the executable and arguments are assembled by the
	// pipeline, not taken from untrusted input.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdout = r.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = r.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	err := c.Run()
	if err == nil {
		return nil
	}
	return commandError(cmd, err)
}

// commandError classifies a failed invocation. A non-zero exit keeps the
// child's status so the CLI can propagate it unchanged.
func commandError(cmd Command, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code <= 0 {
			// Killed by a signal; there is no status to propagate.
			return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("%s was terminated", cmd.Name), err)
		}
		return model.WrapCLIError(model.ExitCode(code), fmt.Sprintf("%s exited with status %d", cmd.Name, code), err)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("%s not found in PATH", cmd.Name), err)
	}
	return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to run %s", cmd.Name), err)
}

// Recorder is a Runner that records commands instead of executing them.
//
// With Log enabled every command is logged the way ExecRunner logs it,
// prefixed with "[dry-run]"; this is what --dry-run uses. Hook, when set,
// decides the outcome of each command and lets tests simulate failures.
type Recorder struct {
	Log  bool
	Hook func(cmd Command) error

	mu       sync.Mutex
	commands []Command
}

// NewDryRunner creates the Recorder used for --dry-run.
func NewDryRunner() *Recorder {
	return &Recorder{Log: true}
}

// Run records cmd and returns the Hook's verdict (nil without a Hook).
func (r *Recorder) Run(ctx context.Context, cmd Command) error {
	if r.Log {
		console.Logger(ctx).Info().Bool(console.FieldCommand, true).Msg("[dry-run] " + cmd.String())
	}

	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Hook != nil {
		return r.Hook(cmd)
	}
	return ctx.Err()
}

// Commands returns a copy of every command recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

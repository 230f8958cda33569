// Package console renders the structured log stream of caro-build on a
// terminal.
//
// Every package logs through a zerolog.Logger carried in the context
// (WithLogger / Logger). The logger writes JSON events into a Writer,
// which decodes each event and prints a single colored line through
// colorstring. Pipeline steps show up as "==>" banners, executed commands
// as "$" lines and everything else as "->" sub-steps.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DebugEnv dumps every field of every event when set to a non-empty value.
const DebugEnv = "CARO_BUILD_DEBUG"

// Event field names with special rendering.
const (
	FieldStep    = "step"
	FieldCommand = "command"
	FieldTool    = "tool"
	FieldPath    = "path"
)

// Writer turns zerolog JSON events into colored console lines.
type Writer struct {
	out    io.Writer
	color  colorstring.Colorize
	debug  bool
	buffer strings.Builder
	lock   sync.Mutex
}

// NewWriter creates a Writer printing to out. Colors are disabled when
// out is not a terminal or NO_COLOR is set.
func NewWriter(out io.Writer) *Writer {
	return &Writer{
		out: out,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !wantsColor(out),
			Reset:   true,
		},
		debug: os.Getenv(DebugEnv) != "",
	}
}

func wantsColor(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (w *Writer) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	msg, _ := evt[zerolog.MessageFieldName].(string)
	if path, ok := evt[FieldPath].(string); ok {
		msg = shortenPath(msg, path)
	}

	w.buffer.Reset()
	level, _ := evt[zerolog.LevelFieldName].(string)
	switch {
	case level == "fatal" || level == "error":
		w.buffer.WriteString("[red][bold]  ->[reset][red] Error: ")
	case level == "warn":
		w.buffer.WriteString("[yellow][bold]  ->[reset][yellow] ")
	case isTrue(evt[FieldStep]):
		w.buffer.WriteString("[blue][bold]==>[reset][bold] ")
	case isTrue(evt[FieldCommand]):
		w.buffer.WriteString("[dim]  $ ")
	case level == "debug" || level == "trace":
		w.buffer.WriteString("[blue]     ")
	default:
		w.buffer.WriteString("[green][bold]  ->[reset] ")
	}

	if tool, ok := evt[FieldTool].(string); ok {
		w.buffer.WriteString(tool + ": ")
	}
	w.buffer.WriteString(msg)

	if details, ok := evt[zerolog.ErrorFieldName].(string); ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(details)
	}

	if w.debug {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		w.buffer.WriteString("\n")
		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, evt[name]))
		}
	}

	w.buffer.WriteString("[reset]\n")
	if _, err := io.WriteString(w.out, w.color.Color(w.buffer.String())); err != nil {
		return 0, err
	}
	return len(p), nil
}

// shortenPath replaces path in msg by its form relative to the working
// directory when path lies below it.
func shortenPath(msg, path string) string {
	if !filepath.IsAbs(path) {
		return msg
	}
	cwd, err := os.Getwd()
	if err != nil {
		return msg
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return msg
	}
	return strings.ReplaceAll(msg, path, rel)
}

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// New creates the logger used for a whole run. verbose lowers the level
// to debug; otherwise only info and above are printed.
func New(out io.Writer, verbose bool) zerolog.Logger {
	debug := os.Getenv(DebugEnv) != ""
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, debug)
	}

	level := zerolog.InfoLevel
	if verbose || debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(NewWriter(out)).Level(level)
}

type logKey struct{}

// WithLogger attaches the given logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// Logger returns the logger attached to ctx. Without one, a disabled
// logger is returned so that library code never has to nil-check.
func Logger(ctx context.Context) *zerolog.Logger {
	if logger, ok := ctx.Value(logKey{}).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Step logs a pipeline step banner.
func Step(ctx context.Context, format string, args ...interface{}) {
	Logger(ctx).Info().Bool(FieldStep, true).Msgf(format, args...)
}

package console

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, verbose bool) (*bytes.Buffer, context.Context) {
	t.Helper()
	t.Setenv(DebugEnv, "")

	var buf bytes.Buffer
	logger := New(&buf, verbose)
	return &buf, WithLogger(context.Background(), &logger)
}

// TestWriter_Rendering verifies the line prefix chosen for each kind of
// event. The buffer is not a terminal, so no escape codes are emitted.
func TestWriter_Rendering(t *testing.T) {
	tests := []struct {
		name string
		emit func(ctx context.Context)
		want string
	}{
		{
			name: "step banner",
			emit: func(ctx context.Context) { Step(ctx, "Configuring (%s)", "Debug") },
			want: "==> Configuring (Debug)\n",
		},
		{
			name: "command line",
			emit: func(ctx context.Context) {
				Logger(ctx).Info().Bool(FieldCommand, true).Msg("cmake --build build")
			},
			want: "  $ cmake --build build\n",
		},
		{
			name: "plain info",
			emit: func(ctx context.Context) { Logger(ctx).Info().Msg("submodules present") },
			want: "  -> submodules present\n",
		},
		{
			name: "warning",
			emit: func(ctx context.Context) { Logger(ctx).Warn().Msg("no files matched") },
			want: "  -> no files matched\n",
		},
		{
			name: "tool prefix",
			emit: func(ctx context.Context) {
				Logger(ctx).Info().Str(FieldTool, "clang-tidy").Msg("3 files")
			},
			want: "  -> clang-tidy: 3 files\n",
		},
		{
			name: "brackets from tool output survive",
			emit: func(ctx context.Context) {
				Logger(ctx).Warn().Msg("warning [readability-braces]")
			},
			want: "  -> warning [readability-braces]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, ctx := newTestLogger(t, false)
			tt.emit(ctx)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

// TestWriter_ErrorDetails checks that the error field is printed on the
// line after the message.
func TestWriter_ErrorDetails(t *testing.T) {
	buf, ctx := newTestLogger(t, false)

	Logger(ctx).Error().Err(errors.New("exit status 2")).Msg("build failed")

	out := buf.String()
	assert.Contains(t, out, "Error: build failed\n")
	assert.Contains(t, out, "exit status 2")
}

// TestNew_Verbose verifies that debug events are only printed in
// verbose mode.
func TestNew_Verbose(t *testing.T) {
	buf, ctx := newTestLogger(t, false)
	Logger(ctx).Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	buf, ctx = newTestLogger(t, true)
	Logger(ctx).Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

// TestLogger_MissingFromContext ensures library code can log without a
// configured logger.
func TestLogger_MissingFromContext(t *testing.T) {
	logger := Logger(context.Background())
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Info().Msg("dropped")
	})
}

func TestWriter_RejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	_, err := w.Write([]byte("not json"))
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

// TestWriter_ShortensPaths checks that paths below the working directory
// are printed relative to it and other paths are left alone.
func TestWriter_ShortensPaths(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	inside := filepath.Join(dir, "build", "compile_commands.json")
	outside := filepath.Join(filepath.Dir(dir), "elsewhere", "compile_commands.json")

	buf, ctx := newTestLogger(t, false)
	Logger(ctx).Info().Str(FieldPath, inside).Msgf("Copied %s", inside)
	Logger(ctx).Info().Str(FieldPath, outside).Msgf("Copied %s", outside)
	Logger(ctx).Info().Str(FieldPath, dir).Msgf("Removing %s", dir)

	assert.Equal(t,
		"  -> Copied "+filepath.Join("build", "compile_commands.json")+"\n"+
			"  -> Copied "+outside+"\n"+
			"  -> Removing "+dir+"\n",
		buf.String())
}

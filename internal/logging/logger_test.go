package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger_DebugFlag(t *testing.T) {
	t.Setenv("TREB_LOG_LEVEL", "error")

	quiet := NewLogger(&config.RuntimeConfig{})
	assert.False(t, quiet.Enabled(t.Context(), slog.LevelWarn))

	debug := NewLogger(&config.RuntimeConfig{Debug: true})
	assert.True(t, debug.Enabled(t.Context(), slog.LevelDebug))
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "internal/usecase/run_release.go", shortPath("/home/dev/treb-release/internal/usecase/run_release.go"))
	assert.Equal(t, "main.go", shortPath("/tmp/main.go"))
}

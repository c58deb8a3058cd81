package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything else"))
}

func TestNew(t *testing.T) {
	log := New("debug", "json")
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelDebug))

	log = New("error", "text")
	assert.False(t, log.Enabled(nil, slog.LevelInfo))
}

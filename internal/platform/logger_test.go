package platform

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	t.Run("Respects Level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer := NewLogger(slog.LevelWarn, &buf, LogFile{})
		defer closer.Close()

		logger.Info("hidden")
		logger.Warn("shown", "kind", "child")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "kind=child")
	})

	t.Run("Tees Into Rotating File", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "logs", "fieldbook.log")
		logger, closer := NewLogger(slog.LevelInfo, &buf, LogFile{Path: path, MaxSizeMB: 1, MaxBackups: 1})

		logger.Info("sync run finished", "state", "completed")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "state=completed")
		assert.Contains(t, buf.String(), "state=completed")
	})
}

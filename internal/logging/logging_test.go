package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharatg/novel-dev/internal/config"
)

func TestSetupWritesJSONRecords(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")

	require.NoError(t, Setup(config.LoggingConfig{
		Level:      "debug",
		File:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}))

	slog.Debug("writing chapter", "chapter_index", 3)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"writing chapter"`)
	assert.Contains(t, string(data), `"chapter_index":3`)
	assert.Contains(t, string(data), `"level":"DEBUG"`)
}

func TestSetupLevelFiltering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")

	require.NoError(t, Setup(config.LoggingConfig{
		Level:     "warn",
		File:      logFile,
		MaxSizeMB: 1,
	}))

	slog.Info("suppressed record")
	slog.Warn("kept record")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed record")
	assert.Contains(t, string(data), "kept record")
}

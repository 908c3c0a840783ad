package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "agent.log")

	require.NoError(t, Init(Config{File: logFile}))
	Info("kiosk connected", "device", "ipad-1")

	_, err := os.Stat(logFile)
	assert.NoError(t, err)
	assert.Equal(t, log.InfoLevel, Logger.GetLevel())
}

func TestInit_DebugLevel(t *testing.T) {
	require.NoError(t, Init(Config{Debug: true}))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	Debug("debug message")
	Warn("warn message")
	With("component", "test").Info("child logger")
}

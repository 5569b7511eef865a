package logger

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func withOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOutput, oldLevel := Output, log.GetLevel()
	Output = &buf
	t.Cleanup(func() {
		Output = oldOutput
		Setup(oldLevel == log.DebugLevel)
		log.SetLevel(oldLevel)
	})
	return &buf
}

func TestDefaultFollowsSetup(t *testing.T) {
	buf := withOutput(t)

	Setup(false)
	l := Default("server")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Info("ready")
	assert.Contains(t, buf.String(), "server")
	assert.Contains(t, buf.String(), "ready")

	buf.Reset()
	Setup(true)
	Default("watch").Debug("event")
	assert.Contains(t, buf.String(), "watch")
	assert.Contains(t, buf.String(), "event")
}

func TestNewWithConfig(t *testing.T) {
	buf := withOutput(t)

	l := NewWithConfig("cli", log.WarnLevel, false, false, log.TextFormatter)
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "cli")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupLevels(t *testing.T) {
	withOutput(t)

	Setup(true)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	Setup(false)
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

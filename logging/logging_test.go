package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tolelom/zkgame/config"
)

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zkgame.log")
	l, err := New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	Module(l, "orchestrator").Info("phase", zap.String("phase", "submitting"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"module":"orchestrator"`)
	assert.Contains(t, line, `"phase":"submitting"`)
}

func TestBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestModuleOnNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { Module(nil, "x").Info("dropped") })
}

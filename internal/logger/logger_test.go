package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/config"
)

func TestNew_WritesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Info("frame %d", 7)
	l.Warning("queue full for %s", "cam1")
	l.Error("flush failed: %v", "boom")

	out := buf.String()
	assert.Contains(t, out, "INFO    ")
	assert.Contains(t, out, "frame 7")
	assert.Contains(t, out, "WARNING queue full for cam1")
	assert.Contains(t, out, "ERROR   ")
	assert.Contains(t, out, "flush failed: boom")
}

func TestNewLogger_CreatesFilesAndCleans(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewLogger(&config.Config{LogDirectory: dir})
	require.NoError(t, err)
	defer l.Close()

	l.Error("something broke")

	data, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "something broke")

	require.NoError(t, l.CleanLogs("error.log"))
	data, err = os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{JSON: true, Output: &buf})
	log.Infow("batch flushed", "batch", 2, "projects", 5)
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch flushed", entry["msg"])
	assert.Equal(t, float64(2), entry["batch"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_DebugNeedsVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf}).Debug("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	New(Options{Verbose: true, Output: &buf}).Debug("shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
	assert.NotContains(t, buf.String(), "\x1b[", "non-terminal output is not colored")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Infow("ignored", "k", 1) })
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, isTerminal(&buf))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })
	assert.False(t, isTerminal(w), "pipes are not terminals")
}

func TestNew_RedirectedStderrIsNotColored(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	log := New(Options{Output: w})
	log.Warnw("batch interrupted", "batch", 1)
	_ = log.Sync()
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), "WARN")
	assert.NotContains(t, string(out), "\x1b[")
}

package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogToWriter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Disable)

	require.True(t, Enabled())
	Log("engine", "track %d added", 3)

	line := buf.String()
	assert.Contains(t, line, "track 3 added")
	assert.Contains(t, line, "cat=engine")
}

func TestDisabledDropsMessages(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Disable()

	Log("engine", "ignored")
	assert.Empty(t, buf.String())
	assert.False(t, Enabled())
}

func TestSetOutputNilDisables(t *testing.T) {
	SetOutput(nil)
	assert.False(t, Enabled())
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Disable)

	for i := 0; i < 7; i++ {
		LogEvery(3, "render", "tick")
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "tick (every 3"))
}

func TestLoggerStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Disable)

	l := Logger()
	l.Warn().Int("track", 2).Int("accepted", 5).Msg("queue overflow")
	assert.Contains(t, buf.String(), "track=2")
	assert.Contains(t, buf.String(), "queue overflow")
}

package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the engine's info sink for the duration of a test.
func captureLog(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := logInfo
	logInfo = func(msg string) { lines = append(lines, msg) }
	t.Cleanup(func() { logInfo = prev })
	return &lines
}

func TestLogWriterSplitsLines(t *testing.T) {
	lines := captureLog(t)

	lw := newLogWriter("  | ", 0)
	_, err := lw.Write([]byte("first\nsecond\npart"))
	require.NoError(t, err)
	lw.Flush()

	assert.Equal(t, []string{"  | first", "  | second", "  | part"}, *lines)
}

func TestLogWriterBuffersPartialLines(t *testing.T) {
	lines := captureLog(t)

	lw := newLogWriter("> ", 0)
	lw.Write([]byte("hel"))
	lw.Write([]byte("lo\n"))

	assert.Equal(t, []string{"> hello"}, *lines)
}

func TestLogWriterFlushWithoutTrailingNewline(t *testing.T) {
	lines := captureLog(t)

	lw := newLogWriter("> ", 0)
	lw.Write([]byte("tail"))
	assert.Empty(t, *lines)

	lw.Flush()
	assert.Equal(t, []string{"> tail"}, *lines)

	// A second flush writes nothing.
	lw.Flush()
	assert.Len(t, *lines, 1)
}

func TestLogWriterTruncatesLongLines(t *testing.T) {
	lines := captureLog(t)

	lw := newLogWriter("", 10)
	lw.Write([]byte(strings.Repeat("x", 50) + "\n"))

	require.Len(t, *lines, 1)
	got := (*lines)[0]
	assert.Len(t, got, 10)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestLogWriterDropsOverflowAcrossWrites(t *testing.T) {
	lines := captureLog(t)

	lw := newLogWriter("", 8)
	lw.Write([]byte(strings.Repeat("a", 8)))
	lw.Write([]byte("overflow\n"))

	require.Len(t, *lines, 1)
	got := (*lines)[0]
	assert.Len(t, got, 8)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestLogWriterEmptyLines(t *testing.T) {
	lines := captureLog(t)

	lw := newLogWriter("| ", 0)
	lw.Write([]byte("\n\n"))

	assert.Equal(t, []string{"| ", "| "}, *lines)
}

func TestLogWriterNilSafe(t *testing.T) {
	var lw *logWriter
	n, err := lw.Write([]byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	lw.Flush()
}

func TestTailBufferUnderLimit(t *testing.T) {
	b := &tailBuffer{limit: 16}
	b.Write([]byte("hello "))
	b.Write([]byte("world"))
	assert.Equal(t, "hello world", b.String())
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := &tailBuffer{limit: 8}
	b.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", b.String())
}

func TestTailBufferRollsAcrossWrites(t *testing.T) {
	b := &tailBuffer{limit: 4}
	b.Write([]byte("ab"))
	b.Write([]byte("cd"))
	b.Write([]byte("ef"))
	assert.Equal(t, "cdef", b.String())
}

func TestTailBufferZeroLimitDiscards(t *testing.T) {
	b := &tailBuffer{}
	n, err := b.Write([]byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "", b.String())
}

package obslog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputSplitterBytePatternMatching(t *testing.T) {
	splitter := &OutputSplitter{}

	errorPatterns := [][]byte{
		[]byte("level=error"),
		[]byte(`level=error msg="test"`),
		[]byte("prefix level=error suffix"),
	}
	for _, pattern := range errorPatterns {
		n, err := splitter.Write(pattern)
		assert.NoError(t, err)
		assert.Equal(t, len(pattern), n)
		assert.True(t, bytes.Contains(pattern, []byte("level=error")))
	}

	nonErrorPatterns := [][]byte{
		[]byte("level=info"),
		[]byte("level=warning"),
		[]byte("error in message but level=info"),
		[]byte("LEVEL=ERROR"),
	}
	for _, pattern := range nonErrorPatterns {
		n, err := splitter.Write(pattern)
		assert.NoError(t, err)
		assert.Equal(t, len(pattern), n)
	}
}

func TestLoggerUsesOutputSplitter(t *testing.T) {
	_, ok := Logger.Out.(*OutputSplitter)
	assert.True(t, ok, "Logger should use OutputSplitter")
}

func TestContextLoggerWithField(t *testing.T) {
	l := New(Config{Level: LevelInfo, Format: "text", Process: "orchestrator"})
	cl := ForBug(l, 1001).WithField("branch", "try")
	// Chaining must not mutate the parent's field set.
	base := ForBug(l, 1001)
	cl.WithField("extra", "x")
	assert.NotContains(t, base.fields, "extra")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "<not set>", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "myve...y123", MaskSecret("myverylongsecretkey123"))
}

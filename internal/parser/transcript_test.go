package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscript(t *testing.T) {
	input := "[00:00:05] Welcome to the lecture.\n" +
		"[00:01:30] Today we cover binary trees.\n" +
		"continued on the same topic\n" +
		"[01:02:03] Closing remarks.\n"

	segments, err := ParseTranscript(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, 5, segments[0].Start)
	assert.Equal(t, "Welcome to the lecture.", segments[0].Text)

	assert.Equal(t, 90, segments[1].Start)
	assert.Equal(t, "Today we cover binary trees. continued on the same topic", segments[1].Text)

	assert.Equal(t, 3723, segments[2].Start)
	assert.Equal(t, "Closing remarks.", segments[2].Text)
}

func TestParseTranscript_LeadingUntimedLine(t *testing.T) {
	input := "untimed preamble\n[00:00:10] first timed line\n"

	segments, err := ParseTranscript(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 0, segments[0].Start)
	assert.Equal(t, "untimed preamble", segments[0].Text)
	assert.Equal(t, 10, segments[1].Start)
}

func TestParseTranscript_Empty(t *testing.T) {
	segments, err := ParseTranscript(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSplitTimestampLine(t *testing.T) {
	tests := []struct {
		line     string
		wantSecs int
		wantText string
		wantOK   bool
	}{
		{"[00:00:00] start", 0, "start", true},
		{"[10:20:30] deep", 37230, "deep", true},
		{"no brackets", 0, "", false},
		{"[bad] text", 0, "", false},
		{"[00:00] short", 0, "", false},
		{"[00:-1:00] neg", 0, "", false},
	}
	for _, tt := range tests {
		secs, text, ok := splitTimestampLine(tt.line)
		if ok != tt.wantOK {
			t.Errorf("line=%q: ok=%v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && (secs != tt.wantSecs || text != tt.wantText) {
			t.Errorf("line=%q: got (%d, %q), want (%d, %q)", tt.line, secs, text, tt.wantSecs, tt.wantText)
		}
	}
}

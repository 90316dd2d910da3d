package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/liuwen-dev/studyforge/internal/tree"
)

// ParseTranscript reads a transcript in "[HH:MM:SS] text" line format
// and returns timestamped segments. Lines without a timestamp prefix
// are appended to the previous segment; leading untimed lines start a
// segment at zero seconds.
func ParseTranscript(r io.Reader) ([]tree.Segment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var segments []tree.Segment
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		start, text, ok := splitTimestampLine(line)
		if !ok {
			if len(segments) > 0 {
				segments[len(segments)-1].Text += " " + line
			} else {
				segments = append(segments, tree.Segment{Start: 0, Text: line})
			}
			continue
		}
		if text == "" {
			continue
		}
		segments = append(segments, tree.Segment{Start: start, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

// splitTimestampLine parses "[HH:MM:SS] text" into seconds and text.
func splitTimestampLine(line string) (int, string, bool) {
	if !strings.HasPrefix(line, "[") {
		return 0, "", false
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return 0, "", false
	}

	parts := strings.Split(line[1:end], ":")
	if len(parts) != 3 {
		return 0, "", false
	}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, "", false
		}
		fields[i] = n
	}

	seconds := fields[0]*3600 + fields[1]*60 + fields[2]
	return seconds, strings.TrimSpace(line[end+1:]), true
}

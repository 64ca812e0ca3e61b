// Package transcript splits a multi-speaker transcript into speaker turns.
package transcript

import (
	"strings"
)

// Segment is one speaker turn.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Parse splits transcript into turns for the given speaker labels.
//
// A line starting with "<label>:" opens a turn for that speaker. Lines
// without a known label continue the current turn, or belong to the first
// label if no turn has started. Blank lines are dropped and consecutive
// lines from the same speaker are merged into one segment.
func Parse(transcript string, labels []string) []Segment {
	if len(labels) == 0 {
		return nil
	}

	var segments []Segment
	current := labels[0]

	for _, raw := range strings.Split(transcript, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		speaker, text := splitLabel(line, labels)
		if speaker != "" {
			current = speaker
		} else {
			text = line
		}
		if text == "" {
			continue
		}

		if n := len(segments); n > 0 && segments[n-1].Speaker == current {
			segments[n-1].Text += " " + text
			continue
		}
		segments = append(segments, Segment{Speaker: current, Text: text})
	}
	return segments
}

// Format renders segments as "Label: text" lines.
func Format(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Speaker)
		sb.WriteString(": ")
		sb.WriteString(seg.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Speakers returns the distinct speakers in order of first appearance.
func Speakers(segments []Segment) []string {
	var out []string
	seen := map[string]bool{}
	for _, seg := range segments {
		if seen[seg.Speaker] {
			continue
		}
		seen[seg.Speaker] = true
		out = append(out, seg.Speaker)
	}
	return out
}

func splitLabel(line string, labels []string) (speaker, text string) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", ""
	}
	prefix := strings.TrimSpace(line[:idx])
	for _, l := range labels {
		if strings.EqualFold(prefix, l) {
			return l, strings.TrimSpace(line[idx+1:])
		}
	}
	return "", ""
}

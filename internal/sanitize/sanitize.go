// Package sanitize strips formatting artifacts that language models wrap
// around their answers.
package sanitize

import (
	"regexp"
	"strings"
)

const delimiter = "---"

var (
	// A language tag counts only when a line break follows it.
	fenceStart = regexp.MustCompile("^```(?:[A-Za-z0-9_+-]+[ \\t]*\\r?\\n|[ \\t]*\\r?\\n?)")
	fenceEnd   = regexp.MustCompile("\\s*```$")
)

// Clean removes a surrounding "---" block, a leading and a trailing code
// fence, and surrounding whitespace. The rules are repeated until nothing
// changes, so Clean(Clean(s)) == Clean(s).
func Clean(raw string) string {
	current := strings.TrimSpace(raw)
	for {
		next := cleanOnce(current)
		if next == current {
			return next
		}
		current = next
	}
}

func cleanOnce(s string) string {
	s = unwrapDelimited(strings.TrimSpace(s))
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// unwrapDelimited turns "---\nBODY\n---" into "BODY". Anything else is
// returned unchanged.
func unwrapDelimited(s string) string {
	if !strings.HasPrefix(s, delimiter) {
		return s
	}

	first := strings.IndexByte(s, '\n')
	if first < 0 || strings.TrimSpace(s[:first]) != delimiter {
		return s
	}

	last := strings.LastIndexByte(s, '\n')
	if last <= first || strings.TrimSpace(s[last+1:]) != delimiter {
		return s
	}

	return strings.TrimSpace(s[first+1 : last])
}

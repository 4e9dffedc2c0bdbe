package prompt

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Jenkins hides serialized console notes between ESC[8m and ESC[0m.
	consoleNote = regexp.MustCompile(`\x1b\[8mha:[^\x1b]*\x1b\[0m`)
	ansiEscape  = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	blankRuns   = regexp.MustCompile(`\n{4,}`)
)

// injectionPatterns match phrases that try to override the system prompt.
// Role markers are matched at line start only, since "ERROR:" style prefixes
// are common in build output.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*prompt\s*:`),
	regexp.MustCompile(`(?im)^\s*(ASSISTANT|HUMAN|SYSTEM)\s*:`),
}

// Sanitize prepares console output or diff text for a prompt. Console notes
// and color codes are removed, CRLF is normalized, other control characters
// are dropped, injection phrases become [FILTERED] and blank runs are capped
// at three newlines.
func Sanitize(content string) string {
	content = consoleNote.ReplaceAllString(content, "")
	content = ansiEscape.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var sb strings.Builder
	sb.Grow(len(content))
	for _, r := range content {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}

	out := sb.String()
	for _, p := range injectionPatterns {
		out = p.ReplaceAllString(out, "[FILTERED]")
	}
	return blankRuns.ReplaceAllString(out, "\n\n\n")
}

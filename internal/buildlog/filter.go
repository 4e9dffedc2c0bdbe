// Package buildlog fetches Jenkins console output and reduces it to the lines
// that describe a build failure.
package buildlog

import "strings"

// DefaultKeywords are the case-sensitive markers of a failure line.
var DefaultKeywords = []string{"ERROR", "FAILED", "Exception", "error", "BUILD FAILURE"}

// Filter selects failure lines from raw console text.
type Filter struct {
	keywords []string
}

// NewFilter creates a filter over the given keywords; nil means DefaultKeywords.
func NewFilter(keywords []string) *Filter {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &Filter{keywords: keywords}
}

// ErrorLines returns every line of raw that contains at least one keyword,
// in original order. The result is never nil.
func (f *Filter) ErrorLines(raw string) []string {
	return FilterErrorLines(raw, f.keywords)
}

// FilterErrorLines keeps the lines of raw that contain any of keywords.
// CRLF line endings are treated as plain newlines.
func FilterErrorLines(raw string, keywords []string) []string {
	lines := []string{}
	if raw == "" {
		return lines
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, kw := range keywords {
			if strings.Contains(line, kw) {
				lines = append(lines, line)
				break
			}
		}
	}
	return lines
}

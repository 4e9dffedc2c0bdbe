// Package errors provides the error taxonomy used across the service and
// utilities for keeping credentials out of error messages.
package errors

import (
	"fmt"
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// redaction replaces every match of pattern with replacement.
type redaction struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

func redact(name, expr string) redaction {
	return redaction{name: name, pattern: regexp.MustCompile(expr), replacement: redactedPlaceholder}
}

// redactions run in order. Userinfo goes first so the URL keeps its shape.
var redactions = []redaction{
	{
		name:        "url userinfo",
		pattern:     regexp.MustCompile(`//[^/\s:@]+:[^/\s@]+@`),
		replacement: "//" + redactedPlaceholder + "@",
	},
	redact("openrouter key", `sk-or-[a-zA-Z0-9_-]{10,}`),
	redact("anthropic key", `sk-ant-[a-zA-Z0-9_-]{10,}`),
	redact("openai-style key", `sk-[a-zA-Z0-9_-]{32,}`),
	redact("github token", `gh[pousr]_[A-Za-z0-9]{20,}`),
	redact("github fine-grained token", `github_pat_[A-Za-z0-9_]{20,}`),
	redact("telegram bot token", `\d{8,12}:[a-zA-Z0-9_-]{30,}`),
	redact("bearer credentials", `Bearer\s+[a-zA-Z0-9_.-]+`),
	redact("basic credentials", `Basic\s+[a-zA-Z0-9+/=]{8,}`),
	redact("authorization header", `(?i)authorization[:\s]+[^\s]+`),
	redact("api key parameter", `(?i)api[_-]?key[=:][^\s&"']+`),
	redact("x-api-key header", `(?i)x-api-key[:\s]+[^\s]+`),
}

// maskPrefixes are kept visible by MaskCredential.
var maskPrefixes = []string{"sk-or-", "sk-ant-", "ghp_", "github_pat_"}

// SanitizeString redacts credentials from s.
func SanitizeString(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// ContainsCredentials reports whether s appears to contain credentials.
func ContainsCredentials(s string) bool {
	for _, r := range redactions {
		if r.pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// SanitizeError returns err with credentials redacted from its message.
// errors.Is and errors.As still see the original.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if clean := SanitizeString(msg); clean != msg {
		return &sanitizedError{original: err, sanitized: clean}
	}
	return err
}

// Wrapf is fmt.Errorf("format: %w", err) with err sanitized. Use it when err
// may echo a request URL or header.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), SanitizeError(err))
}

type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string { return e.sanitized }

func (e *sanitizedError) Unwrap() error { return e.original }

// MaskCredential shortens a credential for display, keeping only a known
// prefix, a Telegram bot id or the first four characters.
func MaskCredential(s string) string {
	if len(s) < 10 {
		return strings.Repeat("*", len(s))
	}
	for _, prefix := range maskPrefixes {
		if strings.HasPrefix(s, prefix) {
			return prefix + "***..."
		}
	}
	if id, _, ok := strings.Cut(s, ":"); ok && id != "" && len(id) <= 12 {
		return id + ":***..."
	}
	return s[:4] + "***..."
}

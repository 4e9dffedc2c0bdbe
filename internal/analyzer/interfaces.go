// Package analyzer implements the three build-failure operations exposed as
// tools: Jenkins error-line retrieval, commit diff chunking, and assembly of
// the failure report prompt from caller-supplied logs and diff.
package analyzer

import (
	"context"
	"strings"

	"github.com/olegiv/bugfixer-ai-go/internal/diff"
)

// EstimateTokens estimates the number of tokens in the content.
// Uses the algorithm: max(chars/4, words/0.75)
func EstimateTokens(content string) int {
	chars := len(content)
	words := len(strings.Fields(content))

	charsEstimate := chars / 4
	wordsEstimate := int(float64(words) / 0.75)

	if charsEstimate > wordsEstimate {
		return charsEstimate
	}
	return wordsEstimate
}

// BuildLogSource fetches the console output of a build.
// Implemented by buildlog.JenkinsClient.
type BuildLogSource interface {
	ConsoleText(ctx context.Context, job, buildRef string) (string, error)
}

// DiffSource fetches the retained changed lines of a commit.
// Implemented by diff.GitHubClient.
type DiffSource interface {
	FetchDiff(ctx context.Context, owner, repo, sha string) ([]diff.FilePatch, error)
	MaxLinesPerFile() int
}

// LogFilter selects the error lines of a console log.
// Implemented by buildlog.Filter.
type LogFilter interface {
	ErrorLines(raw string) []string
}

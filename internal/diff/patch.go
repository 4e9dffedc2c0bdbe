// Package diff turns a commit's file patches into a compact added/removed
// line listing and splits that listing into prompt-sized chunks.
package diff

import (
	"bytes"
	"encoding/json"
	"strings"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

// DefaultMaxLinesPerFile is how many changed lines are kept per file.
// Later changes in large files are dropped.
const DefaultMaxLinesPerFile = 15

// File is one entry of a commit's "files" array as returned by the GitHub API.
type File struct {
	Filename  string `json:"filename"`
	Status    string `json:"status,omitempty"`
	Additions int    `json:"additions,omitempty"`
	Deletions int    `json:"deletions,omitempty"`
	Patch     string `json:"patch,omitempty"`
}

// Commit is the subset of the GitHub commit resource the fetcher reads.
type Commit struct {
	SHA   string `json:"sha"`
	Files []File `json:"files"`
}

// FilePatch holds the retained changed lines of one file, each starting with '+' or '-'.
type FilePatch struct {
	Filename string
	Lines    []string
}

// ParseCommitJSON decodes caller-supplied commit JSON. Both the full commit
// object ({"files": [...]}) and a bare files array are accepted; blank input
// yields no files.
func ParseCommitJSON(raw string) ([]File, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var files []File
		if err := json.Unmarshal(trimmed, &files); err != nil {
			return nil, internalerrors.Validation("diff.parse", "diff_json is not a valid files array: %v", err)
		}
		return files, nil
	}

	var commit Commit
	if err := json.Unmarshal(trimmed, &commit); err != nil {
		return nil, internalerrors.Validation("diff.parse", "diff_json is not valid commit JSON: %v", err)
	}
	return commit.Files, nil
}

// ExtractPatches keeps, per file, the first maxLines lines that start with
// '+' or '-' (excluding the "+++"/"---" headers). Files without a patch or
// without any retained line are skipped. File order is preserved.
func ExtractPatches(files []File, maxLines int) []FilePatch {
	if maxLines <= 0 {
		maxLines = DefaultMaxLinesPerFile
	}

	patches := []FilePatch{}
	for _, f := range files {
		if f.Patch == "" {
			continue
		}

		var lines []string
		for _, line := range strings.Split(f.Patch, "\n") {
			if isChangeLine(line) {
				lines = append(lines, line)
				if len(lines) == maxLines {
					break
				}
			}
		}
		if len(lines) == 0 {
			continue
		}

		patches = append(patches, FilePatch{Filename: baseName(f.Filename), Lines: lines})
	}
	return patches
}

// Render concatenates the patches into the diff text: each file contributes a
// "[name]" header line followed by its lines, all joined by newlines.
func Render(patches []FilePatch) string {
	var lines []string
	for _, p := range patches {
		lines = append(lines, "["+p.Filename+"]")
		lines = append(lines, p.Lines...)
	}
	return strings.Join(lines, "\n")
}

func isChangeLine(line string) bool {
	if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return false
	}
	return strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")
}

func baseName(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

package analyzer

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/olegiv/bugfixer-ai-go/internal/diff"
	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

const consoleLog = `Started by user admin
[INFO] Building user-service 1.0.0
[ERROR] /src/main/java/UserController.java:[42,35] cannot find symbol
[ERROR]   symbol: method getUserById(java.lang.Long)
Tests run: 12, Failures: 0
BUILD FAILURE
Finished: FAILED`

const commitJSON = `{"sha":"abc123","files":[
  {"filename":"src/main/java/UserController.java","patch":"@@ -40,3 +40,3 @@\n--- a/x\n+++ b/x\n-    return userService.findById(id);\n+    return userService.getUserById(id);"},
  {"filename":"assets/logo.png"}
]}`

// mockLogSource implements BuildLogSource for testing
type mockLogSource struct {
	log string
	err error

	job, build string
}

func (m *mockLogSource) ConsoleText(ctx context.Context, job, buildRef string) (string, error) {
	m.job, m.build = job, buildRef
	return m.log, m.err
}

// mockDiffSource implements DiffSource for testing
type mockDiffSource struct {
	patches []diff.FilePatch
	err     error
	calls   int
}

func (m *mockDiffSource) FetchDiff(ctx context.Context, owner, repo, sha string) ([]diff.FilePatch, error) {
	m.calls++
	return m.patches, m.err
}

func (m *mockDiffSource) MaxLinesPerFile() int {
	return diff.DefaultMaxLinesPerFile
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"chars dominate", strings.Repeat("a", 400), 100},
		{"words dominate", "a b c d e f", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.content); got != tt.want {
				t.Errorf("EstimateTokens() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJenkinsLogs(t *testing.T) {
	logs := &mockLogSource{log: consoleLog}
	s := New(Options{Logs: logs})

	report, err := s.JenkinsLogs(context.Background(), "springboot-user-service", "42")
	if err != nil {
		t.Fatalf("JenkinsLogs() error: %v", err)
	}

	if logs.job != "springboot-user-service" || logs.build != "42" {
		t.Errorf("ConsoleText called with %q/%q", logs.job, logs.build)
	}
	if report.JobName != "springboot-user-service" || report.BuildNumber != "42" {
		t.Errorf("report identity = %+v", report)
	}
	if report.Status != StatusRetrieved {
		t.Errorf("Status = %q", report.Status)
	}

	want := []string{
		"[ERROR] /src/main/java/UserController.java:[42,35] cannot find symbol",
		"[ERROR]   symbol: method getUserById(java.lang.Long)",
		"BUILD FAILURE",
		"Finished: FAILED",
	}
	if strings.Join(report.ErrorLines, "\n") != strings.Join(want, "\n") {
		t.Errorf("ErrorLines = %q, want %q", report.ErrorLines, want)
	}
}

func TestJenkinsLogsErrors(t *testing.T) {
	upstream := internalerrors.Upstream("jenkins.console", http.StatusNotFound, "Not Found", nil)
	s := New(Options{Logs: &mockLogSource{err: upstream}})

	_, err := s.JenkinsLogs(context.Background(), "job", "1")
	if internalerrors.HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404", internalerrors.HTTPStatus(err))
	}

	_, err = New(Options{}).JenkinsLogs(context.Background(), "job", "1")
	if internalerrors.KindOf(err) != internalerrors.KindConfig {
		t.Errorf("kind = %v, want config", internalerrors.KindOf(err))
	}
}

func TestDiffPush(t *testing.T) {
	var lines []string
	for i := 0; i < 15; i++ {
		lines = append(lines, "+"+strings.Repeat("x", 70))
	}
	diffs := &mockDiffSource{patches: []diff.FilePatch{
		{Filename: "A.java", Lines: lines},
		{Filename: "B.java", Lines: lines},
	}}
	s := New(Options{Diffs: diffs})

	first, err := s.DiffPush(context.Background(), "acme", "svc", "abc1234567", 0)
	if err != nil {
		t.Fatalf("DiffPush() error: %v", err)
	}
	if first.Total < 2 {
		t.Fatalf("Total = %d, want several chunks", first.Total)
	}
	if first.Chunk != 0 || first.IsLast || first.FileCount != 2 || first.Status != StatusRetrieved {
		t.Errorf("first chunk = %+v", first)
	}
	if !strings.HasPrefix(first.Diff, "[A.java]\n+") {
		t.Errorf("first chunk text = %q", first.Diff)
	}

	clamped, err := s.DiffPush(context.Background(), "acme", "svc", "abc1234567", 99)
	if err != nil {
		t.Fatalf("DiffPush() error: %v", err)
	}
	if clamped.Chunk != first.Total-1 || !clamped.IsLast {
		t.Errorf("out-of-range index should clamp to the last chunk, got %+v", clamped)
	}
}

func TestDiffPushEmptyCommit(t *testing.T) {
	s := New(Options{Diffs: &mockDiffSource{}})

	report, err := s.DiffPush(context.Background(), "acme", "svc", "abc", 3)
	if err != nil {
		t.Fatalf("DiffPush() error: %v", err)
	}
	if report.Diff != "" || report.Chunk != 0 || report.Total != 0 || !report.IsLast {
		t.Errorf("empty commit report = %+v", report)
	}
}

func TestDiffPushNegativeIndex(t *testing.T) {
	diffs := &mockDiffSource{}
	s := New(Options{Diffs: diffs})

	_, err := s.DiffPush(context.Background(), "acme", "svc", "abc", -1)
	if internalerrors.KindOf(err) != internalerrors.KindRange {
		t.Errorf("kind = %v, want range", internalerrors.KindOf(err))
	}
	if internalerrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", internalerrors.HTTPStatus(err))
	}
	if diffs.calls != 0 {
		t.Error("no fetch should happen for a negative index")
	}
}

func TestAnalyzeBuildFailure(t *testing.T) {
	s := New(Options{})

	analysis, err := s.AnalyzeBuildFailure(consoleLog, commitJSON, 0)
	if err != nil {
		t.Fatalf("AnalyzeBuildFailure() error: %v", err)
	}

	if analysis.ErrorCount != 4 || analysis.FileCount != 1 {
		t.Errorf("counts = %d errors / %d files, want 4 / 1", analysis.ErrorCount, analysis.FileCount)
	}
	if analysis.Total != 1 || !analysis.IsLast || analysis.Chunk != 0 {
		t.Errorf("chunk metadata = %+v", analysis)
	}
	if analysis.Status != StatusAnalyzed {
		t.Errorf("Status = %q", analysis.Status)
	}
	if analysis.EstimatedTokens <= 0 {
		t.Errorf("EstimatedTokens = %d", analysis.EstimatedTokens)
	}

	for _, want := range []string{
		"Error lines: 4 | Changed files: 1",
		"cannot find symbol",
		"[UserController.java]\n-    return userService.findById(id);\n+    return userService.getUserById(id);",
	} {
		if !strings.Contains(analysis.FormattedPrompt, want) {
			t.Errorf("FormattedPrompt missing %q:\n%s", want, analysis.FormattedPrompt)
		}
	}
	if strings.Contains(analysis.FormattedPrompt, "+++ b/x") || strings.Contains(analysis.FormattedPrompt, "logo.png") {
		t.Error("FormattedPrompt should not contain headers or files without patches")
	}
}

func TestAnalyzeBuildFailureInputs(t *testing.T) {
	s := New(Options{})

	tests := []struct {
		name       string
		logs       string
		diffJSON   string
		wantPrompt bool
		wantErrors int
		wantFiles  int
	}{
		{"both empty", "", "", false, 0, 0},
		{"logs without errors and empty files", "all good\nSUCCESS", `{"files":[]}`, false, 0, 0},
		{"logs only", consoleLog, "", true, 4, 0},
		{"diff only", "", commitJSON, true, 0, 1},
		{"bare files array", "", `[{"filename":"a/B.java","patch":"+x"}]`, true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := s.AnalyzeBuildFailure(tt.logs, tt.diffJSON, 0)
			if err != nil {
				t.Fatalf("AnalyzeBuildFailure() error: %v", err)
			}
			if (analysis.FormattedPrompt != "") != tt.wantPrompt {
				t.Errorf("FormattedPrompt = %q, want non-empty: %v", analysis.FormattedPrompt, tt.wantPrompt)
			}
			if analysis.ErrorCount != tt.wantErrors || analysis.FileCount != tt.wantFiles {
				t.Errorf("counts = %d/%d, want %d/%d", analysis.ErrorCount, analysis.FileCount, tt.wantErrors, tt.wantFiles)
			}
			if !tt.wantPrompt && analysis.Status != StatusNoData {
				t.Errorf("Status = %q, want %q", analysis.Status, StatusNoData)
			}
		})
	}
}

func TestAnalyzeBuildFailureErrors(t *testing.T) {
	s := New(Options{})

	_, err := s.AnalyzeBuildFailure(consoleLog, `{"files": [`, 0)
	if internalerrors.KindOf(err) != internalerrors.KindValidation {
		t.Errorf("malformed diff_json kind = %v, want validation", internalerrors.KindOf(err))
	}

	_, err = s.AnalyzeBuildFailure(consoleLog, commitJSON, -2)
	if internalerrors.KindOf(err) != internalerrors.KindRange {
		t.Errorf("negative index kind = %v, want range", internalerrors.KindOf(err))
	}
}

func TestAnalyzeBuildFailureChunks(t *testing.T) {
	var patch strings.Builder
	for i := 0; i < 15; i++ {
		patch.WriteString("\n+" + strings.Repeat("y", 60))
	}
	files := `[` +
		`{"filename":"One.java","patch":"@@ -1 +1 @@` + strings.ReplaceAll(patch.String(), "\n", `\n`) + `"},` +
		`{"filename":"Two.java","patch":"@@ -1 +1 @@` + strings.ReplaceAll(patch.String(), "\n", `\n`) + `"}` +
		`]`

	s := New(Options{Chunker: diff.NewChunker(400)})
	first, err := s.AnalyzeBuildFailure("ERROR x", files, 0)
	if err != nil {
		t.Fatalf("AnalyzeBuildFailure() error: %v", err)
	}
	if first.Total < 2 || first.IsLast {
		t.Fatalf("expected several chunks, got %+v", first)
	}
	if !strings.Contains(first.FormattedPrompt, "(part 1/") {
		t.Error("multi-chunk prompt should note its position")
	}

	last, err := s.AnalyzeBuildFailure("ERROR x", files, first.Total-1)
	if err != nil {
		t.Fatalf("AnalyzeBuildFailure() error: %v", err)
	}
	if !last.IsLast || last.Chunk != first.Total-1 {
		t.Errorf("last chunk = %+v", last)
	}
}

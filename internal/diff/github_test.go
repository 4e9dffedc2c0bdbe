package diff

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

func newGitHubServer(t *testing.T, wantToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
			t.Errorf("Accept header = %q", got)
		}
		if wantToken != "" && r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}

		switch r.URL.Path {
		case "/repos/acme/user-service/commits/abc123":
			var big strings.Builder
			big.WriteString("@@ -0,0 +1,20 @@")
			for i := 0; i < 20; i++ {
				fmt.Fprintf(&big, "\n+line %d", i)
			}
			_ = json.NewEncoder(w).Encode(Commit{
				SHA: "abc123",
				Files: []File{
					{Filename: "src/main/java/UserController.java", Patch: "@@ -1 +1 @@\n-old\n+new"},
					{Filename: "assets/logo.png"},
					{Filename: "src/Big.java", Patch: big.String()},
				},
			})
		case "/repos/acme/user-service/commits/empty":
			_ = json.NewEncoder(w).Encode(Commit{SHA: "empty", Files: []File{{Filename: "logo.png"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"No commit found for SHA"}`))
		}
	}))
}

func TestFetchDiff(t *testing.T) {
	server := newGitHubServer(t, "")
	defer server.Close()

	client := NewGitHubClient(GitHubConfig{BaseURL: server.URL}, server.Client())
	patches, err := client.FetchDiff(context.Background(), "acme", "user-service", "abc123")
	if err != nil {
		t.Fatalf("FetchDiff() error: %v", err)
	}

	if len(patches) != 2 {
		t.Fatalf("got %d patches, want 2", len(patches))
	}
	if patches[0].Filename != "UserController.java" || len(patches[0].Lines) != 2 {
		t.Errorf("first patch = %+v", patches[0])
	}
	if patches[1].Filename != "Big.java" || len(patches[1].Lines) != 15 {
		t.Errorf("second patch should be capped at 15 lines, got %+v", patches[1])
	}

	text := Render(patches)
	if !strings.HasPrefix(text, "[UserController.java]\n-old\n+new\n[Big.java]\n+line 0") {
		t.Errorf("Render() = %q", text)
	}
}

func TestFetchDiffEmptyCommit(t *testing.T) {
	server := newGitHubServer(t, "")
	defer server.Close()

	client := NewGitHubClient(GitHubConfig{BaseURL: server.URL}, server.Client())
	patches, err := client.FetchDiff(context.Background(), "acme", "user-service", "empty")
	if err != nil {
		t.Fatalf("FetchDiff() error: %v", err)
	}

	chunk, err := NewChunker(DefaultMaxChars).Chunk(Render(patches), 0)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if chunk != (Chunk{Index: 0, Text: "", Total: 0, IsLast: true}) {
		t.Errorf("empty commit chunk = %+v", chunk)
	}
}

func TestFetchDiffWithToken(t *testing.T) {
	server := newGitHubServer(t, "ghp_testtoken")
	defer server.Close()

	client := NewGitHubClient(GitHubConfig{BaseURL: server.URL, Token: "ghp_testtoken"}, server.Client())
	if _, err := client.FetchDiff(context.Background(), "acme", "user-service", "abc123"); err != nil {
		t.Fatalf("FetchDiff() with token error: %v", err)
	}

	anonymous := NewGitHubClient(GitHubConfig{BaseURL: server.URL}, server.Client())
	_, err := anonymous.FetchDiff(context.Background(), "acme", "user-service", "abc123")
	if internalerrors.HTTPStatus(err) != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", internalerrors.HTTPStatus(err))
	}
}

func TestFetchDiffUpstreamError(t *testing.T) {
	server := newGitHubServer(t, "")
	defer server.Close()

	client := NewGitHubClient(GitHubConfig{BaseURL: server.URL}, server.Client())
	_, err := client.FetchDiff(context.Background(), "acme", "user-service", "deadbeef")

	if internalerrors.KindOf(err) != internalerrors.KindUpstream {
		t.Fatalf("kind = %v, want upstream", internalerrors.KindOf(err))
	}
	if internalerrors.HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404", internalerrors.HTTPStatus(err))
	}
	if !strings.Contains(err.Error(), "No commit found") {
		t.Errorf("upstream message should be preserved: %v", err)
	}
}

func TestCommitFilesRejectsUnsafeInput(t *testing.T) {
	client := NewGitHubClient(GitHubConfig{}, http.DefaultClient)

	tests := []struct{ owner, repo, sha string }{
		{"../etc", "repo", "abc"},
		{"acme", "repo/../../x", "abc"},
		{"acme", "repo", "abc?x=1"},
		{"", "repo", "abc"},
	}
	for _, tt := range tests {
		_, err := client.CommitFiles(context.Background(), tt.owner, tt.repo, tt.sha)
		if internalerrors.KindOf(err) != internalerrors.KindValidation {
			t.Errorf("CommitFiles(%q, %q, %q) kind = %v, want validation", tt.owner, tt.repo, tt.sha, internalerrors.KindOf(err))
		}
	}
}

func TestNewGitHubClientDefaults(t *testing.T) {
	client := NewGitHubClient(GitHubConfig{}, http.DefaultClient)
	if client.baseURL != DefaultGitHubAPIURL {
		t.Errorf("baseURL = %q", client.baseURL)
	}
	if client.MaxLinesPerFile() != DefaultMaxLinesPerFile {
		t.Errorf("MaxLinesPerFile() = %d", client.MaxLinesPerFile())
	}
}

func TestShortSHA(t *testing.T) {
	tests := []struct {
		sha, want string
	}{
		{"abc1234567890def", "abc1234"},
		{"abc1234", "abc1234"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortSHA(tt.sha); got != tt.want {
			t.Errorf("ShortSHA(%q) = %q, want %q", tt.sha, got, tt.want)
		}
	}
}

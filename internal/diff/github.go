package diff

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
)

// DefaultGitHubAPIURL is the public GitHub REST endpoint.
const DefaultGitHubAPIURL = "https://api.github.com"

var validRepoPart = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// GitHubConfig configures a GitHubClient.
type GitHubConfig struct {
	BaseURL string
	// Token is optional; anonymous access is rate limited by GitHub.
	Token string
	// MaxLinesPerFile caps retained lines per file; 0 means DefaultMaxLinesPerFile.
	MaxLinesPerFile int
}

// GitHubClient reads commit patches from a GitHub-compatible REST API.
type GitHubClient struct {
	baseURL         string
	token           string
	maxLinesPerFile int
	httpClient      *http.Client
}

// NewGitHubClient creates a client. httpClient carries the fetch timeout and proxy.
func NewGitHubClient(cfg GitHubConfig, httpClient *http.Client) *GitHubClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	maxLines := cfg.MaxLinesPerFile
	if maxLines <= 0 {
		maxLines = DefaultMaxLinesPerFile
	}
	return &GitHubClient{
		baseURL:         baseURL,
		token:           cfg.Token,
		maxLinesPerFile: maxLines,
		httpClient:      httpClient,
	}
}

// CommitFiles returns the file entries of commit sha in owner/repo.
func (g *GitHubClient) CommitFiles(ctx context.Context, owner, repo, sha string) ([]File, error) {
	for name, value := range map[string]string{"repo_owner": owner, "repo_name": repo, "commit_sha": sha} {
		if !validRepoPart.MatchString(value) || strings.Contains(value, "..") {
			return nil, internalerrors.Validation("github.commit", "%s %q contains invalid characters", name, value)
		}
	}

	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}

	commit, err := httpclient.GetJSON[Commit](ctx, g.httpClient, httpclient.Request{
		Op: "github.commit",
		URL: fmt.Sprintf("%s/repos/%s/%s/commits/%s", g.baseURL,
			url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha)),
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	return commit.Files, nil
}

// FetchDiff returns the retained per-file patches of a commit, in API order.
func (g *GitHubClient) FetchDiff(ctx context.Context, owner, repo, sha string) ([]FilePatch, error) {
	files, err := g.CommitFiles(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}
	return ExtractPatches(files, g.maxLinesPerFile), nil
}

// MaxLinesPerFile returns the per-file line cap in use.
func (g *GitHubClient) MaxLinesPerFile() int {
	return g.maxLinesPerFile
}

// ShortSHA abbreviates a commit SHA to seven characters for display.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

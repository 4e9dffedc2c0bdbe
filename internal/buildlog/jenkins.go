package buildlog

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
)

var (
	validJobSegment = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	validBuildRef   = regexp.MustCompile(`^[0-9]+$`)
)

// Jenkins permalinks accepted in place of a build number.
var buildPermalinks = map[string]bool{
	"lastBuild":             true,
	"lastCompletedBuild":    true,
	"lastFailedBuild":       true,
	"lastStableBuild":       true,
	"lastSuccessfulBuild":   true,
	"lastUnstableBuild":     true,
	"lastUnsuccessfulBuild": true,
}

// JenkinsConfig configures a JenkinsClient.
type JenkinsConfig struct {
	BaseURL  string
	User     string
	Token    string
	MaxBytes int64
}

// JenkinsClient downloads build console output.
type JenkinsClient struct {
	baseURL    string
	user       string
	token      string
	maxBytes   int64
	httpClient *http.Client
}

// NewJenkinsClient creates a client. httpClient carries the fetch timeout and proxy.
func NewJenkinsClient(cfg JenkinsConfig, httpClient *http.Client) *JenkinsClient {
	return &JenkinsClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		user:       cfg.User,
		token:      cfg.Token,
		maxBytes:   cfg.MaxBytes,
		httpClient: httpClient,
	}
}

// ConsoleText returns the raw console output of build buildRef of job.
// job may name a folder path such as "team/service".
func (j *JenkinsClient) ConsoleText(ctx context.Context, job, buildRef string) (string, error) {
	if j.baseURL == "" {
		return "", internalerrors.Config("jenkins.console", "JENKINS_URL is not configured")
	}

	jobPath, err := jobURLPath(job)
	if err != nil {
		return "", err
	}
	if err := validateBuildRef(buildRef); err != nil {
		return "", err
	}

	body, err := httpclient.Get(ctx, j.httpClient, httpclient.Request{
		Op:        "jenkins.console",
		URL:       fmt.Sprintf("%s%s/%s/consoleText", j.baseURL, jobPath, buildRef),
		Headers:   map[string]string{"Accept": "text/plain"},
		BasicUser: j.user,
		BasicPass: j.token,
		Limit:     j.maxBytes,
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// jobURLPath turns "folder/job" into "/job/folder/job/job", rejecting
// traversal and anything outside the safe character set.
func jobURLPath(job string) (string, error) {
	if job == "" {
		return "", internalerrors.Validation("jenkins.job", "job name cannot be empty")
	}
	if strings.Contains(job, "..") {
		return "", internalerrors.Validation("jenkins.job", "job name cannot contain '..'")
	}
	if strings.Contains(strings.ToLower(job), "%2e") {
		return "", internalerrors.Validation("jenkins.job", "job name cannot contain URL-encoded dots")
	}
	if strings.HasPrefix(job, "/") || strings.HasPrefix(job, "\\") {
		return "", internalerrors.Validation("jenkins.job", "job name cannot be absolute")
	}

	var b strings.Builder
	for _, segment := range strings.Split(job, "/") {
		if !validJobSegment.MatchString(segment) {
			return "", internalerrors.Validation("jenkins.job", "job name %q contains invalid characters", job)
		}
		b.WriteString("/job/")
		b.WriteString(segment)
	}
	return b.String(), nil
}

func validateBuildRef(ref string) error {
	if validBuildRef.MatchString(ref) || buildPermalinks[ref] {
		return nil
	}
	return internalerrors.Validation("jenkins.build", "build number %q must be numeric or a Jenkins permalink", ref)
}

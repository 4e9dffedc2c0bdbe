// Package toolserver exposes the build-failure analyzer as Model Context
// Protocol tools.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/olegiv/bugfixer-ai-go/internal/analyzer"
	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
)

// ServerName is the MCP server name announced on initialize.
const ServerName = "bugfixer-tools"

// Tool names.
const (
	ToolJenkinsLogs   = "get_jenkins_logs"
	ToolDiffPush      = "get_diff_push"
	ToolAnalyzeFailed = "analyze_build_failure"
)

// ToolError is the payload a tool returns instead of its result when it fails.
// Kind and StatusCode let callers rebuild the classified error.
// Detail is the classified message, e.g. the upstream response body.
type ToolError struct {
	Error      string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code"`
}

// NewToolError builds the payload for err.
func NewToolError(err error) ToolError {
	payload := ToolError{
		Error:      internalerrors.SanitizeString(err.Error()),
		Kind:       internalerrors.KindOf(err).String(),
		StatusCode: internalerrors.HTTPStatus(err),
	}

	var classified *internalerrors.Error
	if errors.As(err, &classified) {
		payload.Detail = internalerrors.SanitizeString(classified.Message)
	}
	return payload
}

// Analyzer runs the operations behind the tools.
// Implemented by analyzer.Service.
type Analyzer interface {
	JenkinsLogs(ctx context.Context, jobName, buildNumber string) (*analyzer.LogReport, error)
	DiffPush(ctx context.Context, owner, repo, sha string, chunkIndex int) (*analyzer.DiffReport, error)
	AnalyzeBuildFailure(rawLogs, diffJSON string, chunkIndex int) (*analyzer.Analysis, error)
}

// Server wraps the MCP server with the build-failure tools.
type Server struct {
	mcpServer *server.MCPServer
	analyzer  Analyzer
	log       *logging.SecureLogger
}

// NewServer creates a new MCP server backed by a.
func NewServer(a Analyzer, version string, log *logging.SecureLogger) *Server {
	if log == nil {
		log = logging.Nop()
	}

	s := &Server{
		analyzer: a,
		log:      log,
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	jenkinsTool := mcp.NewTool(ToolJenkinsLogs,
		mcp.WithDescription("Fetch the console log of a failed Jenkins build and keep only its error lines"),
		mcp.WithString("job_name",
			mcp.Required(),
			mcp.Description("Jenkins job name, folders separated by '/' (e.g. springboot-user-service)"),
		),
		mcp.WithString("build_number",
			mcp.Required(),
			mcp.Description("Build number (e.g. \"42\") or permalink such as lastFailedBuild"),
		),
	)
	mcpServer.AddTool(jenkinsTool, s.handleJenkinsLogs)

	diffTool := mcp.NewTool(ToolDiffPush,
		mcp.WithDescription("Fetch the changed lines of a commit, split into chunks. "+
			"Call with chunk_index=0, then 1, 2... until is_last is true"),
		mcp.WithString("repo_owner",
			mcp.Required(),
			mcp.Description("GitHub repository owner"),
		),
		mcp.WithString("repo_name",
			mcp.Required(),
			mcp.Description("GitHub repository name"),
		),
		mcp.WithString("commit_sha",
			mcp.Required(),
			mcp.Description("Commit hash"),
		),
		mcp.WithNumber("chunk_index",
			mcp.Description("Index of the chunk to return (default: 0)"),
		),
	)
	mcpServer.AddTool(diffTool, s.handleDiffPush)

	analyzeTool := mcp.NewTool(ToolAnalyzeFailed,
		mcp.WithDescription("Build the failure report prompt from raw Jenkins logs and commit JSON"),
		mcp.WithString("jenkins_logs",
			mcp.Required(),
			mcp.Description("Raw Jenkins console output"),
		),
		mcp.WithString("diff_json",
			mcp.Required(),
			mcp.Description("GitHub commit JSON ({\"files\": [...]}) or a bare files array"),
		),
		mcp.WithNumber("chunk_index",
			mcp.Description("Index of the diff chunk to use (default: 0)"),
		),
	)
	mcpServer.AddTool(analyzeTool, s.handleAnalyze)
}

func (s *Server) handleJenkinsLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := requireStringArg(request, "job_name")
	if err != nil {
		return s.failure(ToolJenkinsLogs, err), nil
	}
	build, err := requireStringArg(request, "build_number")
	if err != nil {
		return s.failure(ToolJenkinsLogs, err), nil
	}

	s.log.Info().Str("tool", ToolJenkinsLogs).Str("job", job).Str("build", build).Msg("Tool called")

	report, err := s.analyzer.JenkinsLogs(ctx, job, build)
	if err != nil {
		return s.failure(ToolJenkinsLogs, err), nil
	}
	return s.success(ToolJenkinsLogs, report), nil
}

func (s *Server) handleDiffPush(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := make([]string, 0, 3)
	for _, name := range []string{"repo_owner", "repo_name", "commit_sha"} {
		v, err := requireStringArg(request, name)
		if err != nil {
			return s.failure(ToolDiffPush, err), nil
		}
		args = append(args, v)
	}
	chunkIndex := request.GetInt("chunk_index", 0)

	s.log.Info().Str("tool", ToolDiffPush).Str("repo", args[0]+"/"+args[1]).Int("chunk", chunkIndex).Msg("Tool called")

	report, err := s.analyzer.DiffPush(ctx, args[0], args[1], args[2], chunkIndex)
	if err != nil {
		return s.failure(ToolDiffPush, err), nil
	}
	return s.success(ToolDiffPush, report), nil
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Empty strings are valid input here: an empty log or diff is reported
	// as nothing to analyze, not as a missing argument.
	rawLogs, err := requireStringArg(request, "jenkins_logs")
	if err != nil {
		return s.failure(ToolAnalyzeFailed, err), nil
	}
	diffJSON, err := requireStringArg(request, "diff_json")
	if err != nil {
		return s.failure(ToolAnalyzeFailed, err), nil
	}
	chunkIndex := request.GetInt("chunk_index", 0)

	s.log.Info().Str("tool", ToolAnalyzeFailed).Int("log_bytes", len(rawLogs)).Int("diff_bytes", len(diffJSON)).
		Int("chunk", chunkIndex).Msg("Tool called")

	analysis, err := s.analyzer.AnalyzeBuildFailure(rawLogs, diffJSON, chunkIndex)
	if err != nil {
		return s.failure(ToolAnalyzeFailed, err), nil
	}
	return s.success(ToolAnalyzeFailed, analysis), nil
}

func (s *Server) success(tool string, v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return s.failure(tool, fmt.Errorf("failed to encode result: %w", err))
	}
	return mcp.NewToolResultText(string(data))
}

func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	payload := NewToolError(err)
	s.log.Warn().Str("tool", tool).Str("kind", payload.Kind).Int("status_code", payload.StatusCode).Err(err).
		Msg("Tool failed")

	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return mcp.NewToolResultError(payload.Error)
	}
	return mcp.NewToolResultError(string(data))
}

// requireStringArg returns a required argument as a string. Numbers are
// accepted and formatted, so build_number may be sent either way.
func requireStringArg(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := request.GetArguments()[name]
	if !ok || v == nil {
		return "", internalerrors.Validation("toolserver", "%s is required", name)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	default:
		return "", internalerrors.Validation("toolserver", "%s must be a string", name)
	}
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport of the server.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

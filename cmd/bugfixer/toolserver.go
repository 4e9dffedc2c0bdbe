package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olegiv/bugfixer-ai-go/internal/analyzer"
	"github.com/olegiv/bugfixer-ai-go/internal/api"
	"github.com/olegiv/bugfixer-ai-go/internal/buildlog"
	"github.com/olegiv/bugfixer-ai-go/internal/config"
	"github.com/olegiv/bugfixer-ai-go/internal/diff"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
	"github.com/olegiv/bugfixer-ai-go/internal/prompt"
	"github.com/olegiv/bugfixer-ai-go/internal/toolserver"
)

func toolServerCmd() *cobra.Command {
	var (
		flags commonFlags
		stdio bool
	)

	cmd := &cobra.Command{
		Use:   "toolserver",
		Short: "Start the MCP tool server",
		Long: `Start the MCP (Model Context Protocol) tool server exposing
get_jenkins_logs, get_diff_push and analyze_build_failure.

By default the server listens on streamable HTTP at /mcp. With --stdio it
speaks MCP on stdin/stdout and logs to file only.

Environment variables:
  JENKINS_URL            Jenkins base URL; get_jenkins_logs fails when unset
  JENKINS_USER           Jenkins user for basic auth
  JENKINS_TOKEN          Jenkins API token
  GITHUB_API_URL         GitHub API base URL (default: https://api.github.com)
  GITHUB_TOKEN           Optional GitHub token
  FETCH_TIMEOUT_SECONDS  Jenkins/GitHub timeout (default: 30)
  MAX_LOG_SIZE_MB        Console output cap (default: 10)
  CHUNK_MAX_CHARS        Diff chunk budget (default: 800)
  MAX_LINES_PER_FILE     Changed lines kept per file (default: 15)
  PORT                   Port to listen on (default: 8083)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolServer(&config.Overrides{
				Host:     flags.host,
				Port:     flags.port,
				LogLevel: flags.logLevel,
			}, stdio)
		},
	}

	flags.register(cmd, config.DefaultToolPort)
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve MCP on stdin/stdout instead of HTTP")

	return cmd
}

func runToolServer(overrides *config.Overrides, stdio bool) error {
	cfg, err := config.LoadWithOverrides(overrides)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := newLogger(cfg, "toolserver.log", !stdio)
	defer closeLogger(log)

	service, err := newAnalyzerService(cfg, log)
	if err != nil {
		return err
	}
	tools := toolserver.NewServer(service, version, log)

	if stdio {
		log.Info().Str("version", version).Msg("Starting MCP tool server on stdio")
		return tools.ServeStdio()
	}

	log.Info().Str("version", version).Bool("jenkins", cfg.JenkinsURL != "").Str("github", cfg.GitHubAPIURL).
		Msg("Starting MCP tool server")

	server := api.NewServer(cfg.Addr(config.DefaultToolPort), log)
	server.Router().Get("/healthz", api.HealthHandler)
	// No timeout middleware: MCP streams its responses.
	server.Router().Mount("/mcp", tools.Handler())

	return serveUntilSignal(server, log)
}

// newAnalyzerService wires the Jenkins and GitHub fetchers into the analyzer.
// Jenkins is optional; without it get_jenkins_logs reports a configuration error.
func newAnalyzerService(cfg *config.Config, log *logging.SecureLogger) (*analyzer.Service, error) {
	githubHTTP, err := httpclient.New(cfg.GetProxyURL(isHTTPS(cfg.GitHubAPIURL)), cfg.FetchTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub HTTP client: %w", err)
	}

	opts := analyzer.Options{
		Diffs: diff.NewGitHubClient(diff.GitHubConfig{
			BaseURL:         cfg.GitHubAPIURL,
			Token:           cfg.GitHubToken,
			MaxLinesPerFile: cfg.MaxLinesPerFile,
		}, githubHTTP),
		Chunker:         diff.NewChunker(cfg.ChunkMaxChars),
		Prompts:         prompt.NewBuilder(cfg.ResponseLanguage),
		MaxLinesPerFile: cfg.MaxLinesPerFile,
		Logger:          log,
	}

	if cfg.JenkinsURL != "" {
		jenkinsHTTP, err := httpclient.New(cfg.GetProxyURL(isHTTPS(cfg.JenkinsURL)), cfg.FetchTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create Jenkins HTTP client: %w", err)
		}
		opts.Logs = buildlog.NewJenkinsClient(buildlog.JenkinsConfig{
			BaseURL:  cfg.JenkinsURL,
			User:     cfg.JenkinsUser,
			Token:    cfg.JenkinsToken,
			MaxBytes: cfg.MaxLogBytes(),
		}, jenkinsHTTP)
	} else {
		log.Warn().Msg("JENKINS_URL is not set; get_jenkins_logs is unavailable")
	}

	return analyzer.New(opts), nil
}

func isHTTPS(url string) bool {
	return strings.HasPrefix(url, "https://")
}

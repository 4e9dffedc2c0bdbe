package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olegiv/bugfixer-ai-go/internal/ai"
	"github.com/olegiv/bugfixer-ai-go/internal/buildlog"
	"github.com/olegiv/bugfixer-ai-go/internal/config"
	"github.com/olegiv/bugfixer-ai-go/internal/fixer"
	"github.com/olegiv/bugfixer-ai-go/internal/prompt"
	"github.com/olegiv/bugfixer-ai-go/internal/toolclient"
	"github.com/olegiv/bugfixer-ai-go/internal/toolserver"
)

type fixFlags struct {
	logsPath  string
	diffPath  string
	chunk     int
	allChunks bool
	mcpURL    string
	logLevel  string
}

func fixCmd() *cobra.Command {
	var flags fixFlags

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Suggest a fix for saved build output",
		Long: `Suggest a fix for a saved Jenkins console log and commit JSON and print it.

The analyzer tools run in-process unless --mcp-url points at a running tool
server. Either file may be "-" to read standard input.`,
		Example: `  bugfixer fix --logs console.log --diff commit.json
  curl -s https://api.github.com/repos/acme/users/commits/abc123 | bugfixer fix --logs console.log --diff -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.logsPath, "logs", "", "Jenkins console log file")
	cmd.Flags().StringVar(&flags.diffPath, "diff", "", "GitHub commit JSON file")
	cmd.Flags().IntVar(&flags.chunk, "chunk", 0, "Diff chunk to analyze")
	cmd.Flags().BoolVar(&flags.allChunks, "all-chunks", false, "Analyze every diff chunk from --chunk onwards")
	cmd.Flags().StringVar(&flags.mcpURL, "mcp-url", "", "Use a running tool server instead of in-process tools")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

func runFix(cmd *cobra.Command, flags fixFlags) error {
	if flags.logsPath == "" && flags.diffPath == "" {
		return fmt.Errorf("at least one of --logs or --diff is required")
	}
	if flags.logsPath == buildlog.StdinPath && flags.diffPath == buildlog.StdinPath {
		return fmt.Errorf("only one of --logs and --diff can read standard input")
	}

	cfg, err := config.LoadWithOverrides(&config.Overrides{LogLevel: flags.logLevel, MCPServerURL: flags.mcpURL})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// stdout carries the suggestion; log to file only.
	log := newLogger(cfg, "bugfixer.log", false)
	defer closeLogger(log)

	rawLogs, err := readOptional(flags.logsPath, cfg.MaxLogBytes())
	if err != nil {
		return err
	}
	diffJSON, err := readOptional(flags.diffPath, cfg.MaxLogBytes())
	if err != nil {
		return err
	}

	var tools *toolclient.Client
	if flags.mcpURL != "" {
		tools = toolclient.New(cfg.MCPServerURL, version)
	} else {
		service, err := newAnalyzerService(cfg, log)
		if err != nil {
			return err
		}
		tools = toolclient.NewInProcess(toolserver.NewServer(service, version, log).MCPServer(), version)
	}
	log.Info().Str("tools", tools.Target()).Str("provider", cfg.LLMProvider).Msg("Running one-shot fix")

	completer, err := ai.NewCompleter(completionSettings(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize completion client: %w", err)
	}
	logCompleter(log, cfg, completer)

	f := fixer.New(fixer.Options{
		Tools:      tools,
		Completer:  completer,
		Prompts:    prompt.NewBuilder(cfg.ResponseLanguage),
		Notifier:   newNotifier(cfg, log),
		APIKeyName: cfg.CompletionKeyName(),
		HasAPIKey:  cfg.CompletionAPIKey() != "",
		Logger:     log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	for chunk := flags.chunk; ; chunk++ {
		result, err := f.Fix(ctx, fixer.FixRequest{JenkinsLogs: rawLogs, DiffJSON: diffJSON, ChunkIndex: chunk})
		if err != nil {
			return err
		}

		if result.Total > 1 {
			_, _ = fmt.Fprintf(out, "=== Diff part %d/%d ===\n", result.Chunk+1, result.Total)
		}
		_, _ = fmt.Fprintln(out, result.Correction)

		if result.IsLast || !flags.allChunks {
			if !result.IsLast {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "More diff parts remain; rerun with --chunk %d or --all-chunks\n", result.Chunk+1)
			}
			return nil
		}
	}
}

func readOptional(path string, maxBytes int64) (string, error) {
	if path == "" {
		return "", nil
	}
	return buildlog.ReadLocal(path, maxBytes)
}

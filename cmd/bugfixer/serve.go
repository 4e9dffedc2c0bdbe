package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/olegiv/bugfixer-ai-go/internal/ai"
	"github.com/olegiv/bugfixer-ai-go/internal/api"
	"github.com/olegiv/bugfixer-ai-go/internal/config"
	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/fixer"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
	"github.com/olegiv/bugfixer-ai-go/internal/notification"
	"github.com/olegiv/bugfixer-ai-go/internal/prompt"
	"github.com/olegiv/bugfixer-ai-go/internal/toolclient"
)

// telegramTimeout bounds one Telegram API call.
const telegramTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		flags  commonFlags
		mcpURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API (POST /fix, POST /fix/commit, GET /, GET /healthz).

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file in the current directory
  3. Environment variables
  4. Command line flags

Environment variables:
  MCP_SERVER_URL         Tool server endpoint (default: http://localhost:8083/mcp)
  LLM_PROVIDER           openrouter or anthropic (default: openrouter)
  OPENROUTER_API_KEY     Completion key; requests fail with 500 when unset
  OPENROUTER_BASE_URL    Completion endpoint (default: https://openrouter.ai/api/v1)
  LLM_MODEL              Model identifier (default: meta-llama/llama-3.1-8b-instruct)
  AI_TIMEOUT_SECONDS     Completion timeout (default: 60)
  RESPONSE_LANGUAGE      Language of the suggestions (default: French)
  PORT                   Port to listen on (default: 8000)
  CORS_ALLOWED_ORIGINS   Comma-separated origins (default: *)
  TELEGRAM_BOT_TOKEN     Optional: post every suggestion to a channel
  TELEGRAM_CHANNEL_ID    Optional: channel for suggestions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(&config.Overrides{
				Host:         flags.host,
				Port:         flags.port,
				LogLevel:     flags.logLevel,
				MCPServerURL: mcpURL,
			})
		},
	}

	flags.register(cmd, config.DefaultAPIPort)
	cmd.Flags().StringVar(&mcpURL, "mcp-url", "", "Tool server endpoint (default: http://localhost:8083/mcp)")

	return cmd
}

func runServe(overrides *config.Overrides) error {
	cfg, err := config.LoadWithOverrides(overrides)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := newLogger(cfg, "bugfixer.log", true)
	defer closeLogger(log)

	log.Info().Str("version", version).Str("provider", cfg.LLMProvider).Str("model", cfg.GetLLMModel()).
		Str("mcp_server", cfg.MCPServerURL).Msg("Starting BugFixer API")

	completer, err := ai.NewCompleter(completionSettings(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize completion client: %w", err)
	}
	logCompleter(log, cfg, completer)

	f := fixer.New(fixer.Options{
		Tools:      toolclient.New(cfg.MCPServerURL, version),
		Completer:  completer,
		Prompts:    prompt.NewBuilder(cfg.ResponseLanguage),
		Notifier:   newNotifier(cfg, log),
		APIKeyName: cfg.CompletionKeyName(),
		HasAPIKey:  cfg.CompletionAPIKey() != "",
		Logger:     log,
	})

	// One tool round trip plus one completion, with headroom for the MCP handshake.
	requestTimeout := cfg.FetchTimeout() + cfg.AITimeout() + 10*time.Second

	router := api.NewFixRouter(api.RouterOptions{
		Fixer:              f,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout:     requestTimeout,
		Logger:             log,
	})

	server := api.NewServer(cfg.Addr(config.DefaultAPIPort), log, api.WithWriteTimeout(requestTimeout+5*time.Second))
	server.Router().Mount("/", router.Routes())

	return serveUntilSignal(server, log)
}

// logCompleter reports the model settings and whether the key is present.
// Only a masked form of the key is logged.
func logCompleter(log *logging.SecureLogger, cfg *config.Config, completer ai.Completer) {
	key := cfg.CompletionAPIKey()
	if key == "" {
		log.Warn().Str("variable", cfg.CompletionKeyName()).Msg("Completion key is not set; fix requests will fail")
		return
	}
	log.Info().Str("variable", cfg.CompletionKeyName()).Str("key", internalerrors.MaskCredential(key)).
		Interface("model_info", completer.GetModelInfo()).Msg("Completion client ready")
}

func completionSettings(cfg *config.Config) ai.Settings {
	return ai.Settings{
		Provider:    ai.ProviderType(cfg.LLMProvider),
		APIKey:      cfg.CompletionAPIKey(),
		BaseURL:     cfg.OpenRouterBaseURL,
		Model:       cfg.GetLLMModel(),
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout(),
		ProxyURL:    cfg.GetProxyURL(true),
	}
}

// newNotifier returns the Telegram notifier, or nil when it is not configured
// or cannot start. Suggestions are still served without it.
func newNotifier(cfg *config.Config, log *logging.SecureLogger) fixer.Notifier {
	if !cfg.HasTelegram() {
		return nil
	}

	httpClient, err := httpclient.New(cfg.GetProxyURL(true), telegramTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifications disabled")
		return nil
	}

	telegramClient, err := notification.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChannelID, httpClient)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifications disabled")
		return nil
	}

	botInfo := telegramClient.GetBotInfo()
	log.Info().Interface("username", botInfo["username"]).Int64("channel", cfg.TelegramChannelID).
		Msg("Telegram notifications enabled")
	return telegramClient
}

package config

import (
	"crypto/subtle"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/olegiv/bugfixer-ai-go/internal/ai"
)

// Supported completion providers.
const (
	ProviderOpenRouter = string(ai.ProviderOpenRouter)
	ProviderAnthropic  = string(ai.ProviderAnthropic)
)

// Default listen ports for the two processes.
const (
	DefaultAPIPort  = 8000
	DefaultToolPort = 8083
)

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Overrides holds command-line flag values that take precedence over the environment.
// Zero values mean "not set".
type Overrides struct {
	Host         string
	Port         int
	LogLevel     string
	MCPServerURL string
}

// Config holds all application configuration
type Config struct {
	// Tool server location, used by the API process
	MCPServerURL string

	// Completion provider
	LLMProvider       string // "openrouter" (default) or "anthropic"
	LLMModel          string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	AnthropicAPIKey   string
	AnthropicModel    string
	AITimeoutSeconds  int
	AIMaxTokens       int
	AITemperature     float64
	ResponseLanguage  string

	// Jenkins
	JenkinsURL   string
	JenkinsUser  string
	JenkinsToken string

	// GitHub
	GitHubAPIURL string
	GitHubToken  string

	// Fetching and chunking
	FetchTimeoutSeconds int
	MaxLogSizeMB        int
	ChunkMaxChars       int
	MaxLinesPerFile     int

	// HTTP server; Port 0 means "use the command's default"
	Host               string
	Port               int
	CORSAllowedOrigins []string

	// Application
	LogLevel string
	LogDir   string

	// Telegram (optional)
	TelegramBotToken  string
	TelegramChannelID int64

	// Proxy
	HTTPProxy  string
	HTTPSProxy string
}

// LoadWithOverrides loads configuration from the environment and an optional
// .env file. o may be nil.
// Priority: flags > OS environment > .env file > defaults
func LoadWithOverrides(o *Overrides) (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv does not overwrite variables already present in the environment
	_ = godotenv.Load()

	setDefaults()

	config := &Config{
		MCPServerURL: viper.GetString("MCP_SERVER_URL"),

		LLMProvider:       strings.ToLower(viper.GetString("LLM_PROVIDER")),
		LLMModel:          viper.GetString("LLM_MODEL"),
		OpenRouterAPIKey:  viper.GetString("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: viper.GetString("OPENROUTER_BASE_URL"),
		AnthropicAPIKey:   viper.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel:    viper.GetString("ANTHROPIC_MODEL"),
		AITimeoutSeconds:  viper.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:       viper.GetInt("AI_MAX_TOKENS"),
		AITemperature:     viper.GetFloat64("AI_TEMPERATURE"),
		ResponseLanguage:  viper.GetString("RESPONSE_LANGUAGE"),

		JenkinsURL:   strings.TrimRight(viper.GetString("JENKINS_URL"), "/"),
		JenkinsUser:  viper.GetString("JENKINS_USER"),
		JenkinsToken: viper.GetString("JENKINS_TOKEN"),

		GitHubAPIURL: strings.TrimRight(viper.GetString("GITHUB_API_URL"), "/"),
		GitHubToken:  viper.GetString("GITHUB_TOKEN"),

		FetchTimeoutSeconds: viper.GetInt("FETCH_TIMEOUT_SECONDS"),
		MaxLogSizeMB:        viper.GetInt("MAX_LOG_SIZE_MB"),
		ChunkMaxChars:       viper.GetInt("CHUNK_MAX_CHARS"),
		MaxLinesPerFile:     viper.GetInt("MAX_LINES_PER_FILE"),

		Host:               viper.GetString("HOST"),
		Port:               viper.GetInt("PORT"),
		CORSAllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),

		LogLevel: viper.GetString("LOG_LEVEL"),
		LogDir:   viper.GetString("LOG_DIR"),

		TelegramBotToken:  viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChannelID: viper.GetInt64("TELEGRAM_CHANNEL_ID"),

		HTTPProxy:  viper.GetString("HTTP_PROXY"),
		HTTPSProxy: viper.GetString("HTTPS_PROXY"),
	}

	if o != nil {
		if o.Host != "" {
			config.Host = o.Host
		}
		if o.Port != 0 {
			config.Port = o.Port
		}
		if o.LogLevel != "" {
			config.LogLevel = o.LogLevel
		}
		if o.MCPServerURL != "" {
			config.MCPServerURL = o.MCPServerURL
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("MCP_SERVER_URL", "http://localhost:8083/mcp")

	viper.SetDefault("LLM_PROVIDER", ProviderOpenRouter)
	viper.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	viper.SetDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929")
	viper.SetDefault("AI_TIMEOUT_SECONDS", 60)
	viper.SetDefault("AI_MAX_TOKENS", 800)
	viper.SetDefault("AI_TEMPERATURE", 0.1)
	viper.SetDefault("RESPONSE_LANGUAGE", "French")

	viper.SetDefault("GITHUB_API_URL", "https://api.github.com")
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("MAX_LOG_SIZE_MB", 10)
	viper.SetDefault("CHUNK_MAX_CHARS", 800)
	viper.SetDefault("MAX_LINES_PER_FILE", 15)

	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DIR", "./logs")
}

// Validate validates the configuration. A missing completion key is not an
// error here; it is reported on each request that needs it.
func (c *Config) Validate() error {
	if err := c.validateLLMProvider(); err != nil {
		return err
	}

	if err := validateURL("MCP_SERVER_URL", c.MCPServerURL, true); err != nil {
		return err
	}
	if err := validateURL("JENKINS_URL", c.JenkinsURL, false); err != nil {
		return err
	}
	if err := validateURL("GITHUB_API_URL", c.GitHubAPIURL, true); err != nil {
		return err
	}

	if c.FetchTimeoutSeconds < 1 || c.FetchTimeoutSeconds > 600 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be between 1 and 600")
	}
	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 100 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 100")
	}
	if c.ChunkMaxChars < 100 || c.ChunkMaxChars > 100000 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be between 100 and 100000")
	}
	if c.MaxLinesPerFile < 1 || c.MaxLinesPerFile > 1000 {
		return fmt.Errorf("MAX_LINES_PER_FILE must be between 1 and 1000")
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535 (0 or unset uses the default)")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return c.validateTelegram()
}

// validateLLMProvider validates completion provider configuration
func (c *Config) validateLLMProvider() error {
	if !ai.IsValidProviderType(c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'openrouter' or 'anthropic' (got: %s)", c.LLMProvider)
	}

	switch c.LLMProvider {
	case ProviderOpenRouter:
		if err := validateURL("OPENROUTER_BASE_URL", c.OpenRouterBaseURL, true); err != nil {
			return err
		}
	case ProviderAnthropic:
		// Constant-time comparison so the check does not leak key material through timing
		if c.AnthropicAPIKey != "" && !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.AnthropicModel == "" {
			return fmt.Errorf("ANTHROPIC_MODEL is required when LLM_PROVIDER=anthropic")
		}
	}

	if c.AITimeoutSeconds < 1 || c.AITimeoutSeconds > 600 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 1 and 600")
	}
	if c.AIMaxTokens < 1 || c.AIMaxTokens > 16000 {
		return fmt.Errorf("AI_MAX_TOKENS must be between 1 and 16000")
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2")
	}

	return nil
}

// validateTelegram checks the optional notifier settings; both or neither must be set.
func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" && c.TelegramChannelID == 0 {
		return nil
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when TELEGRAM_CHANNEL_ID is set")
	}
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}
	if c.TelegramChannelID == 0 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.TelegramChannelID > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ID must be a supergroup/channel ID (starts with -100)")
	}
	return nil
}

func validateURL(name, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("%s must start with 'http://' or 'https://'", name)
	}
	return nil
}

// constantTimePrefixMatch checks if s starts with prefix using constant-time comparison.
// Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsAnthropic returns true if the completion provider is Anthropic
func (c *Config) IsAnthropic() bool {
	return c.LLMProvider == ProviderAnthropic
}

// CompletionAPIKey returns the key for the selected completion provider.
func (c *Config) CompletionAPIKey() string {
	if c.IsAnthropic() {
		return c.AnthropicAPIKey
	}
	return c.OpenRouterAPIKey
}

// CompletionKeyName returns the environment variable that holds the completion key.
func (c *Config) CompletionKeyName() string {
	if c.IsAnthropic() {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENROUTER_API_KEY"
}

// GetLLMModel returns the model name for the current provider
func (c *Config) GetLLMModel() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	if c.IsAnthropic() {
		return c.AnthropicModel
	}
	return "meta-llama/llama-3.1-8b-instruct"
}

// HasTelegram returns true if suggestion notifications are configured
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != "" && c.TelegramChannelID != 0
}

// GetProxyURL returns the appropriate proxy URL for HTTP/HTTPS requests
func (c *Config) GetProxyURL(isHTTPS bool) string {
	if isHTTPS && c.HTTPSProxy != "" {
		return c.HTTPSProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return ""
}

// Addr returns the listen address, falling back to defaultPort when PORT is unset.
func (c *Config) Addr(defaultPort int) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// AITimeout returns the completion call timeout.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// FetchTimeout returns the Jenkins/GitHub fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// MaxLogBytes returns the Jenkins console size cap in bytes.
func (c *Config) MaxLogBytes() int64 {
	return int64(c.MaxLogSizeMB) * 1024 * 1024
}

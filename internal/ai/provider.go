// Package ai relays a system instruction and a user prompt to a hosted
// completion model and returns the first answer verbatim.
package ai

import (
	"context"
	"fmt"
	"time"
)

// Completer sends one completion request per call. Implementations never retry.
type Completer interface {
	// Complete returns the model's first answer for the two prompts.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error)

	// GetModelInfo returns information about the configured model
	GetModelInfo() map[string]interface{}

	// GetProviderName returns the name of the provider (e.g., "OpenRouter", "Anthropic")
	GetProviderName() string
}

// Completion is a model answer and its accounting.
type Completion struct {
	Text  string
	Model string
	Stats *Stats
}

// Stats holds statistics about the API call
type Stats struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	CostUSD             float64
	DurationSeconds     float64
}

// ProviderType represents the type of completion provider
type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderAnthropic  ProviderType = "anthropic"
)

// Default request parameters.
const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "meta-llama/llama-3.1-8b-instruct"
	DefaultMaxTokens         = 800
	DefaultTemperature       = 0.1
	DefaultTimeout           = 60 * time.Second
)

// Settings configures a Completer.
type Settings struct {
	Provider    ProviderType
	APIKey      string
	// BaseURL applies to OpenRouter only.
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	ProxyURL    string
}

// IsValidProviderType checks if the given provider type is valid
func IsValidProviderType(pt string) bool {
	return pt == string(ProviderOpenRouter) || pt == string(ProviderAnthropic)
}

// NewCompleter builds the completer for s.Provider. A missing API key is not
// an error here; Complete reports it on every call instead.
func NewCompleter(s Settings) (Completer, error) {
	switch s.Provider {
	case ProviderOpenRouter, "":
		return NewOpenRouterClient(s)
	case ProviderAnthropic:
		return NewAnthropicClient(s)
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", s.Provider)
	}
}

func (s Settings) withDefaults(model string) Settings {
	if s.Model == "" {
		s.Model = model
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	return s
}

package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
)

const (
	opAnthropic = "anthropic.complete"

	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
)

// AnthropicClient relays prompts to the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	hasKey    bool
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnthropicClient creates a client from s. An empty APIKey is accepted;
// every Complete call then fails with an auth error.
func NewAnthropicClient(s Settings) (*AnthropicClient, error) {
	s = s.withDefaults(DefaultAnthropicModel)

	httpClient, err := httpclient.New(s.ProxyURL, s.Timeout)
	if err != nil {
		return nil, err
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(s.APIKey, anthropic.WithHTTPClient(httpClient)),
		hasKey:    s.APIKey != "",
		model:     s.Model,
		maxTokens: s.MaxTokens,
		timeout:   s.Timeout,
	}, nil
}

// Complete sends exactly one Messages request and returns the concatenated
// text blocks of the answer.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	if !c.hasKey {
		return nil, internalerrors.Auth(opAnthropic, "ANTHROPIC_API_KEY is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()

	response, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(userPrompt),
				},
			},
		},
		System:    systemPrompt,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return nil, classifyAnthropicError(ctx, opAnthropic, err)
	}

	var text strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" && content.Text != nil {
			text.WriteString(*content.Text)
		}
	}
	if text.Len() == 0 {
		return nil, internalerrors.Upstream(opAnthropic, 0, "", fmt.Errorf("empty response from Claude"))
	}

	return &Completion{
		Text:  text.String(),
		Model: c.model,
		Stats: c.calculateStats(response, time.Since(startTime).Seconds()),
	}, nil
}

// calculateStats calculates cost and token statistics
func (c *AnthropicClient) calculateStats(response anthropic.MessagesResponse, durationSeconds float64) *Stats {
	inputTokens := response.Usage.InputTokens
	outputTokens := response.Usage.OutputTokens
	cacheCreationTokens := response.Usage.CacheCreationInputTokens
	cacheReadTokens := response.Usage.CacheReadInputTokens

	// Claude Sonnet 4.5 pricing per MTok: input $3, output $15,
	// cache write $3.75, cache read $0.30
	inputCost := float64(inputTokens) / 1000000 * 3.0
	outputCost := float64(outputTokens) / 1000000 * 15.0
	cacheWriteCost := float64(cacheCreationTokens) / 1000000 * 3.75
	cacheReadCost := float64(cacheReadTokens) / 1000000 * 0.30

	return &Stats{
		InputTokens:         inputTokens,
		OutputTokens:        outputTokens,
		CacheCreationTokens: cacheCreationTokens,
		CacheReadTokens:     cacheReadTokens,
		CostUSD:             inputCost + outputCost + cacheWriteCost + cacheReadCost,
		DurationSeconds:     durationSeconds,
	}
}

// GetModelInfo returns information about the configured model
func (c *AnthropicClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         c.model,
		"provider":      "Anthropic",
		"max_tokens":    c.maxTokens,
		"context_limit": 200000,
	}
}

// GetProviderName returns the name of the provider
func (c *AnthropicClient) GetProviderName() string {
	return "Anthropic"
}

var _ Completer = (*AnthropicClient)(nil)

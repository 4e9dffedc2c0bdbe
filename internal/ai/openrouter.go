package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
)

const opOpenRouter = "openrouter.complete"

// OpenRouterClient relays prompts to an OpenAI-compatible chat completions
// endpoint, OpenRouter by default.
type OpenRouterClient struct {
	client      *openai.Client
	hasKey      bool
	model       string
	baseURL     string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewOpenRouterClient creates a client from s. An empty APIKey is accepted;
// every Complete call then fails with an auth error.
func NewOpenRouterClient(s Settings) (*OpenRouterClient, error) {
	s = s.withDefaults(DefaultOpenRouterModel)
	if s.BaseURL == "" {
		s.BaseURL = DefaultOpenRouterBaseURL
	}

	httpClient, err := httpclient.New(s.ProxyURL, s.Timeout)
	if err != nil {
		return nil, err
	}

	config := openai.DefaultConfig(s.APIKey)
	config.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
	config.HTTPClient = httpClient

	return &OpenRouterClient{
		client:      openai.NewClientWithConfig(config),
		hasKey:      s.APIKey != "",
		model:       s.Model,
		baseURL:     config.BaseURL,
		maxTokens:   s.MaxTokens,
		temperature: float32(s.Temperature),
		timeout:     s.Timeout,
	}, nil
}

// Complete sends exactly one chat completion request and returns the first
// choice's content unmodified.
func (c *OpenRouterClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	if !c.hasKey {
		return nil, internalerrors.Auth(opOpenRouter, "OPENROUTER_API_KEY is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, classifyOpenAIError(ctx, opOpenRouter, err)
	}

	if len(resp.Choices) == 0 {
		return nil, internalerrors.Upstream(opOpenRouter, 0, "", fmt.Errorf("no choices in response"))
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Stats: &Stats{
			InputTokens:     resp.Usage.PromptTokens,
			OutputTokens:    resp.Usage.CompletionTokens,
			DurationSeconds: time.Since(startTime).Seconds(),
		},
	}, nil
}

// GetModelInfo returns information about the configured model
func (c *OpenRouterClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":       c.model,
		"provider":    "OpenRouter",
		"base_url":    c.baseURL,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	}
}

// GetProviderName returns the name of the provider
func (c *OpenRouterClient) GetProviderName() string {
	return "OpenRouter"
}

var _ Completer = (*OpenRouterClient)(nil)

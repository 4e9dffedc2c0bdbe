package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name         string
		settings     Settings
		wantProvider string
		expectError  bool
	}{
		{"default provider", Settings{}, "OpenRouter", false},
		{"openrouter", Settings{Provider: ProviderOpenRouter}, "OpenRouter", false},
		{"anthropic", Settings{Provider: ProviderAnthropic}, "Anthropic", false},
		{"https proxy", Settings{Provider: ProviderOpenRouter, ProxyURL: "https://proxy.example.com:8080"}, "OpenRouter", false},
		{"unknown provider", Settings{Provider: "ollama"}, "", true},
		{"invalid proxy", Settings{Provider: ProviderAnthropic, ProxyURL: "://invalid-url"}, "", true},
		{"unsupported proxy scheme", Settings{Provider: ProviderOpenRouter, ProxyURL: "socks5://proxy:1080"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer, err := NewCompleter(tt.settings)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if completer.GetProviderName() != tt.wantProvider {
				t.Errorf("GetProviderName() = %q, want %q", completer.GetProviderName(), tt.wantProvider)
			}
		})
	}
}

func TestIsValidProviderType(t *testing.T) {
	for _, pt := range []string{"openrouter", "anthropic"} {
		if !IsValidProviderType(pt) {
			t.Errorf("IsValidProviderType(%q) = false", pt)
		}
	}
	for _, pt := range []string{"", "ollama", "OpenRouter"} {
		if IsValidProviderType(pt) {
			t.Errorf("IsValidProviderType(%q) = true", pt)
		}
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults(DefaultOpenRouterModel)
	if s.Model != DefaultOpenRouterModel || s.MaxTokens != DefaultMaxTokens || s.Timeout != DefaultTimeout {
		t.Errorf("withDefaults() = %+v", s)
	}

	custom := Settings{Model: "m", MaxTokens: 100}.withDefaults(DefaultOpenRouterModel)
	if custom.Model != "m" || custom.MaxTokens != 100 {
		t.Errorf("withDefaults() should keep explicit values, got %+v", custom)
	}
}

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   internalerrors.Kind
		wantStatus int
	}{
		{"api error", &openai.APIError{HTTPStatusCode: 401, Message: "invalid key"}, internalerrors.KindUpstream, 401},
		{"wrapped api error", fmt.Errorf("call: %w", &openai.APIError{HTTPStatusCode: 429, Message: "slow"}), internalerrors.KindUpstream, 429},
		{"request error", &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")}, internalerrors.KindUpstream, 503},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), internalerrors.KindTimeout, http.StatusGatewayTimeout},
		{"network", errors.New("connection refused"), internalerrors.KindUpstream, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyOpenAIError(context.Background(), "op", tt.err)
			if internalerrors.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %v, want %v", internalerrors.KindOf(err), tt.wantKind)
			}
			if internalerrors.HTTPStatus(err) != tt.wantStatus {
				t.Errorf("status = %d, want %d", internalerrors.HTTPStatus(err), tt.wantStatus)
			}
		})
	}

	if classifyOpenAIError(context.Background(), "op", nil) != nil {
		t.Error("nil error should stay nil")
	}
}

func TestClassifyAnthropicError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"rate limit", &anthropic.APIError{Type: anthropic.ErrTypeRateLimit, Message: "rate limited"}, http.StatusTooManyRequests},
		{"overloaded", &anthropic.APIError{Type: anthropic.ErrTypeOverloaded, Message: "overloaded"}, http.StatusServiceUnavailable},
		{"status in message", fmt.Errorf("error, status code: 401, message: %w", &anthropic.APIError{Type: anthropic.ErrTypeAuthentication, Message: "invalid x-api-key"}), http.StatusUnauthorized},
		{"plain status message", errors.New("error, status code: 500, message: boom"), http.StatusInternalServerError},
		{"unclassified api error", &anthropic.APIError{Type: anthropic.ErrTypeInvalidRequest, Message: "bad"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyAnthropicError(context.Background(), "op", tt.err)
			if internalerrors.KindOf(err) != internalerrors.KindUpstream {
				t.Errorf("kind = %v, want upstream", internalerrors.KindOf(err))
			}
			if internalerrors.HTTPStatus(err) != tt.wantStatus {
				t.Errorf("status = %d, want %d", internalerrors.HTTPStatus(err), tt.wantStatus)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(internalerrors.Upstream("op", http.StatusTooManyRequests, "", nil)) {
		t.Error("429 upstream error should be rate limited")
	}
	if IsRateLimited(internalerrors.Upstream("op", http.StatusBadGateway, "", nil)) {
		t.Error("502 upstream error should not be rate limited")
	}
	if IsRateLimited(errors.New("429")) {
		t.Error("unclassified error should not be rate limited")
	}
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
)

// statusInMessage extracts the HTTP status from SDK error strings such as
// "error, status code: 429, message: ...".
var statusInMessage = regexp.MustCompile(`status code:\s*(\d{3})`)

// classifyOpenAIError maps a go-openai failure onto an upstream or timeout
// error that keeps the provider's status code and message.
func classifyOpenAIError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return internalerrors.Upstream(op, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return internalerrors.Upstream(op, reqErr.HTTPStatusCode, "", err)
	}

	return httpclient.Classify(ctx, op, err)
}

// classifyAnthropicError maps a go-anthropic failure the same way.
func classifyAnthropicError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		status := statusFromMessage(err)
		if status == 0 {
			switch {
			case apiErr.IsRateLimitErr():
				status = http.StatusTooManyRequests
			case apiErr.IsOverloadedErr():
				status = http.StatusServiceUnavailable
			}
		}
		return internalerrors.Upstream(op, status, apiErr.Message, err)
	}

	if status := statusFromMessage(err); status != 0 && !isDeadline(ctx, err) {
		return internalerrors.Upstream(op, status, "", err)
	}

	return httpclient.Classify(ctx, op, err)
}

func statusFromMessage(err error) int {
	m := statusInMessage.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return status
}

func isDeadline(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		strings.Contains(strings.ToLower(err.Error()), "deadline exceeded")
}

// IsRateLimited reports whether err is a provider rate limit (HTTP 429).
func IsRateLimited(err error) bool {
	return internalerrors.IsKind(err, internalerrors.KindUpstream) &&
		internalerrors.HTTPStatus(err) == http.StatusTooManyRequests
}

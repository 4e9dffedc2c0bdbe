// Package httpclient holds the outbound HTTP plumbing shared by the Jenkins
// and GitHub fetchers: proxy-aware clients and single-attempt GET helpers that
// classify failures into upstream and timeout errors.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

// maxErrorBody bounds how much of a non-2xx body is kept in the error.
const maxErrorBody = 4096

// New creates an HTTP client with the given timeout and optional proxy.
func New(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if proxyURL == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", internalerrors.SanitizeError(err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("proxy URL must use http or https scheme, got: %s", parsed.Scheme)
	}

	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
		Timeout:   timeout,
	}, nil
}

// Request describes a single outbound GET.
type Request struct {
	// Op names the call in errors, e.g. "jenkins.console".
	Op      string
	URL     string
	Headers map[string]string
	// BasicUser and BasicPass, when BasicUser is non-empty, are sent as basic auth.
	BasicUser string
	BasicPass string
	// Limit caps the body size in bytes; 0 means unlimited.
	Limit int64
}

// Get performs one GET and returns the body. Non-2xx answers become upstream
// errors carrying the status and body; deadline expiry becomes a timeout error.
func Get(ctx context.Context, client *http.Client, r Request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, internalerrors.Validation(r.Op, "invalid request URL: %v", internalerrors.SanitizeError(err))
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if r.BasicUser != "" {
		req.SetBasicAuth(r.BasicUser, r.BasicPass)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, Classify(ctx, r.Op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, internalerrors.Upstream(r.Op, resp.StatusCode, string(body),
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body
	if r.Limit > 0 {
		// Read one byte past the limit to detect oversized bodies
		reader = io.LimitReader(resp.Body, r.Limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, Classify(ctx, r.Op, err)
	}
	if r.Limit > 0 && int64(len(body)) > r.Limit {
		return nil, internalerrors.Upstream(r.Op, http.StatusBadGateway, "",
			fmt.Errorf("response exceeds %d bytes", r.Limit))
	}

	return body, nil
}

// GetJSON performs one GET and decodes the JSON body into T.
func GetJSON[T any](ctx context.Context, client *http.Client, r Request) (*T, error) {
	body, err := Get(ctx, client, r)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, internalerrors.Upstream(r.Op, http.StatusBadGateway, "", fmt.Errorf("failed to decode response: %w", err))
	}
	return &out, nil
}

// Classify turns a transport error into a timeout or upstream error.
func Classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return internalerrors.Timeout(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return internalerrors.Timeout(op, err)
	}
	return internalerrors.Upstream(op, 0, "", err)
}

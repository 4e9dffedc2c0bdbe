// Package toolclient calls the build-failure tools over MCP, one session per
// call, and turns tool error payloads back into classified errors.
package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/httpclient"
	"github.com/olegiv/bugfixer-ai-go/internal/toolserver"
)

const clientName = "bugfixer-api"

// dialFunc opens a fresh, unstarted MCP client.
type dialFunc func() (*client.Client, error)

// Client invokes tools on a remote or in-process MCP server.
type Client struct {
	dial    dialFunc
	target  string
	version string
}

// New creates a client for the streamable HTTP endpoint at url.
func New(url, version string) *Client {
	return &Client{
		dial: func() (*client.Client, error) {
			return client.NewStreamableHttpClient(url)
		},
		target:  url,
		version: version,
	}
}

// NewInProcess creates a client bound directly to s, without a network hop.
func NewInProcess(s *server.MCPServer, version string) *Client {
	return &Client{
		dial: func() (*client.Client, error) {
			return client.NewInProcessClient(s)
		},
		target:  "in-process",
		version: version,
	}
}

// Target describes where tool calls go.
func (c *Client) Target() string {
	return c.target
}

// Call invokes tool with args and decodes its JSON result into out.
// A tool error payload is returned as an *errors.Error carrying the original
// kind and status code; transport failures are upstream (502) or timeout (504)
// errors.
func (c *Client) Call(ctx context.Context, tool string, args map[string]any, out any) error {
	op := "tool." + tool

	mcpClient, err := c.dial()
	if err != nil {
		return internalerrors.Upstream(op, 0, "", fmt.Errorf("failed to create MCP client: %w", err))
	}
	defer func() { _ = mcpClient.Close() }()

	if err := mcpClient.Start(ctx); err != nil {
		return httpclient.Classify(ctx, op, fmt.Errorf("failed to start MCP session: %w", err))
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: c.version,
	}
	if _, err := mcpClient.Initialize(ctx, initRequest); err != nil {
		return httpclient.Classify(ctx, op, fmt.Errorf("failed to initialize MCP session: %w", err))
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args

	result, err := mcpClient.CallTool(ctx, request)
	if err != nil {
		return httpclient.Classify(ctx, op, err)
	}

	text := resultText(result)
	if result.IsError {
		return decodeToolError(op, text)
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return internalerrors.Upstream(op, 0, "", fmt.Errorf("failed to decode tool result: %w", err))
	}
	return nil
}

// decodeToolError rebuilds the classified error from a tool error payload.
// The message is the tool's detail when present, so an upstream body reaches
// the caller unchanged. Non-JSON error text is reported as an upstream failure.
func decodeToolError(op, text string) error {
	var payload toolserver.ToolError
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Kind == "" {
		return internalerrors.Upstream(op, 0, text, fmt.Errorf("tool reported an error"))
	}

	message := payload.Detail
	if message == "" {
		message = payload.Error
	}
	return &internalerrors.Error{
		Kind:       internalerrors.ParseKind(payload.Kind),
		Op:         op,
		StatusCode: payload.StatusCode,
		Message:    internalerrors.SanitizeString(message),
	}
}

// resultText concatenates the text content of a tool result.
func resultText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		switch tc := content.(type) {
		case mcp.TextContent:
			sb.WriteString(tc.Text)
		case *mcp.TextContent:
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

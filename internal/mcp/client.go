package mcp

import (
	"context"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/docbridge/docbridge/internal/config"
)

// toolClient is the slice of the mcp-go client surface the manager needs.
// Tests substitute a fake through the manager's dial hook.
type toolClient interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcpproto.InitializeRequest) (*mcpproto.InitializeResult, error)
	ListTools(ctx context.Context, req mcpproto.ListToolsRequest) (*mcpproto.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error)
	Close() error
}

func dialMCP(s config.ToolServer) (toolClient, error) {
	if s.Transport == "sse" {
		opts := []transport.ClientOption{}
		if len(s.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(s.Headers))
		}
		return mcpclient.NewSSEMCPClient(s.URL, opts...)
	}
	opts := []transport.StreamableHTTPCOption{}
	if len(s.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(s.Headers))
	}
	return mcpclient.NewStreamableHttpClient(s.URL, opts...)
}

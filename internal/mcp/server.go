package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"supportdesk/internal/tools"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server exposes the store tools (catalog, orders, returns, promotions)
// to MCP clients over stdio.
type Server struct {
	registry *tools.Registry
	mcp      *server.MCPServer
}

func NewServer(registry *tools.Registry) (*Server, error) {
	s := &Server{
		registry: registry,
		mcp: server.NewMCPServer(
			"supportdesk",
			Version,
			server.WithToolCapabilities(false),
		),
	}
	for _, t := range registry.Tools() {
		schema, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", t.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, schema), s.handler(t.Name))
	}
	return s, nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError("invalid arguments"), nil
		}
		return toCallResult(s.registry.Call(ctx, name, raw)), nil
	}
}

// toCallResult returns the tool's JSON body as text; failed tools are
// flagged with IsError so the client can tell them apart.
func toCallResult(res tools.Result) *mcp.CallToolResult {
	body, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(res.Error)
	}
	if !res.Success {
		return mcp.NewToolResultError(string(body))
	}
	return mcp.NewToolResultText(string(body))
}

// Serve starts the MCP server on stdio. Stdout carries protocol messages;
// logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

// Package mcp exposes answer evaluation and example retrieval as MCP tools.
package mcp

import (
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/peel-evaluator/internal/server"
)

// RegisterTools registers all MCP tools with the server.
func RegisterTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := registerEvaluationTools(s, sc); err != nil {
		return err
	}
	if err := registerExampleTools(s, sc); err != nil {
		return err
	}
	return nil
}

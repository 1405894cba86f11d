// Package mcp exposes a bql.Engine as a Model Context Protocol server, so an
// LLM client can run BrainQuery statements as a single tool call.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lonniev/thebrain-mcp/pkg/bql"
)

// NewMCPServer builds an MCP server exposing the brain_query tool against
// engine, using defaultGraphID when a call doesn't supply active_graph_id.
func NewMCPServer(engine *bql.Engine, defaultGraphID string) *mcp.Server {
	service := NewService(engine, defaultGraphID)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "BrainQuery",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "brain_query",
		Description: "Run a BrainQuery (BQL) statement against the knowledge graph: MATCH to read, CREATE/MERGE/SET to write, DELETE to remove. DELETE without confirm=true only returns a preview of what would be removed.",
	}, service.BrainQuery)

	return s
}

package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docketbot/docket/internal/tools"
)

// registerSearchTools registers structured_search and semantic_search.
// Both share the kit's input schema, so MCP clients see the same contract
// the model does.
func (s *Server) registerSearchTools() error {
	searchSchema, err := jsonschema.For[tools.SearchArgs](nil)
	if err != nil {
		return fmt.Errorf("schema for search tools: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.StructuredSearchName,
		Description: "Search the issue tracker with a JQL query. " +
			"Use this for precise filters on project, status, assignee, labels, or dates.",
		InputSchema: searchSchema,
	}, s.StructuredSearch)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.SemanticSearchName,
		Description: "Search issues by meaning using the vector index. " +
			"Use this for fuzzy or descriptive queries where exact filters are unknown.",
		InputSchema: searchSchema,
	}, s.SemanticSearch)

	return nil
}

// StructuredSearch handles the structured_search MCP tool call.
func (s *Server) StructuredSearch(ctx context.Context, _ *mcp.CallToolRequest, args tools.SearchArgs) (*mcp.CallToolResult, any, error) {
	return resultToMCP(s.kit.StructuredSearch(ctx, args), s.logger), nil, nil
}

// SemanticSearch handles the semantic_search MCP tool call.
func (s *Server) SemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, args tools.SearchArgs) (*mcp.CallToolResult, any, error) {
	return resultToMCP(s.kit.SemanticSearch(ctx, args), s.logger), nil, nil
}

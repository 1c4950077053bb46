package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListModesInput is the (empty) input schema for list_modes.
type ListModesInput struct{}

// modeSummary is the client-facing view of a mode. Prompt text stays
// server-side; clients only need enough to pick a mode by id.
type modeSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty"`
	System      bool   `json:"system,omitempty"`
}

// registerModeTools registers list_modes.
func (s *Server) registerModeTools() error {
	schema, err := jsonschema.For[ListModesInput](nil)
	if err != nil {
		return fmt.Errorf("schema for list_modes: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "list_modes",
		Description: "List the assistant's registered modes with their ids. " +
			"Modes control the persona and answer format of a turn.",
		InputSchema: schema,
	}, s.ListModes)

	return nil
}

// ListModes handles the list_modes MCP tool call.
func (s *Server) ListModes(_ context.Context, _ *mcp.CallToolRequest, _ ListModesInput) (*mcp.CallToolResult, any, error) {
	modes := s.modes.List()
	summaries := make([]modeSummary, 0, len(modes))
	for _, m := range modes {
		summaries = append(summaries, modeSummary{
			ID:          m.ID,
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Description: m.Description,
			IsDefault:   m.IsDefault,
			System:      m.System(),
		})
	}
	return dataToMCP(summaries, s.logger), nil, nil
}

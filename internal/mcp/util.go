package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/tools"
)

// resultToMCP converts a tool result into an MCP call result. Failed
// results become IsError content carrying only the error code and
// message; Details are logged server-side and never exposed to clients.
func resultToMCP(result tools.Result, logger log.Logger) *mcp.CallToolResult {
	if result.Status == tools.StatusError {
		errorText := fmt.Sprintf("[%s] %s", result.Error.Code, result.Error.Message)
		if result.Error.Details != nil {
			logger.Debug("tool error details withheld from MCP client", "details", result.Error.Details)
		}

		content := []mcp.Content{&mcp.TextContent{Text: errorText}}
		if result.Message != "" {
			content = append(content, &mcp.TextContent{Text: result.Message})
		}
		return &mcp.CallToolResult{
			Content: content,
			IsError: true,
		}
	}

	out := dataToMCP(result.Data, logger)
	if result.Message != "" {
		out.Content = append(out.Content, &mcp.TextContent{Text: result.Message})
	}
	return out
}

// dataToMCP renders arbitrary data as one JSON text content block.
// Clients parse the JSON; there is no per-tool response shape.
func dataToMCP(data any, logger log.Logger) *mcp.CallToolResult {
	if data == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: ""}},
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		logger.Warn("marshaling tool data for MCP client", "error", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "internal error: unrenderable tool result"}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

// Package mcp exposes the assistant's search tools over the Model
// Context Protocol, so external MCP clients (editors, agent frameworks)
// can query the issue tracker through the same gateway the agent uses.
//
// The server registers three tools:
//
//   - structured_search: JQL queries against the tracker
//   - semantic_search: natural-language queries against the vector index
//   - list_modes: the registered assistant modes
//
// Tool failures that the model should handle (validation errors, backend
// outages) come back as results with IsError set; only transport and
// marshaling problems surface as protocol errors.
package mcp

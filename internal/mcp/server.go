package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/tools"
)

// Server wraps the MCP SDK server around the tool kit and mode registry.
type Server struct {
	mcpServer *mcp.Server
	kit       *tools.Kit
	modes     *mode.Registry
	logger    log.Logger
}

// Config holds the server identity and its collaborators.
type Config struct {
	Name    string
	Version string
	Logger  log.Logger
	Kit     *tools.Kit
	Modes   *mode.Registry
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Kit == nil {
		return nil, fmt.Errorf("tool kit is required")
	}
	if cfg.Modes == nil {
		return nil, fmt.Errorf("mode registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		kit:    cfg.Kit,
		modes:  cfg.Modes,
		logger: cfg.Logger.With("component", "mcp"),
	}

	if err := s.registerSearchTools(); err != nil {
		return nil, fmt.Errorf("registering search tools: %w", err)
	}
	if err := s.registerModeTools(); err != nil {
		return nil, fmt.Errorf("registering mode tools: %w", err)
	}

	return s, nil
}

// Run serves MCP requests on the given transport until ctx is canceled.
// This is a blocking call.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// Package cmd provides CLI commands for docket.
//
// Commands:
//   - serve: HTTP API server with SSE turn streaming
//   - ask: one-shot question with events rendered to stdout
//   - mcp: Model Context Protocol server for IDE integration
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docketbot/docket/internal/log"
)

// Version is injected at build time via ldflags.
var Version = "dev"

// Execute is the main entry point for the docket CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger)
	case "mcp":
		return runMCP(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("docket - AI assistant for your issue tracker")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docket serve [addr]      Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  docket ask \"question\"    Ask a one-shot question")
	fmt.Println("  docket mcp               Start MCP server (for Claude Desktop/Cursor)")
	fmt.Println("  docket --version         Show version information")
	fmt.Println("  docket --help            Show this help")
	fmt.Println()
	fmt.Println("Ask Flags:")
	fmt.Println("  --mode <id>              Force a response mode instead of auto-detecting")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY           Gemini API key (default provider)")
	fmt.Println("  TRACKER_BASE_URL         Issue tracker API root")
	fmt.Println("  TRACKER_TOKEN            Issue tracker bearer token")
	fmt.Println("  DEBUG                    Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/docketbot/docket")
}

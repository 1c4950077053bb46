package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docketbot/docket/internal/app"
	"github.com/docketbot/docket/internal/config"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/stream"
	"github.com/docketbot/docket/internal/turn"
)

// runAsk runs one turn with in-memory stores and renders the event stream:
// model text goes to stdout, tool activity to stderr.
func runAsk(logger log.Logger) error {
	askFlags := flag.NewFlagSet("ask", flag.ContinueOnError)
	askFlags.SetOutput(os.Stderr)
	modeID := askFlags.String("mode", "", "Mode id to force instead of auto-detecting")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := askFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ask flags: %w", err)
	}

	question := strings.TrimSpace(strings.Join(askFlags.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: docket ask [--mode <id>] \"question\"")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.SetupLocal(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	_, err = a.Runner.Run(ctx, turn.Request{
		UserID: turn.LocalUser,
		ModeID: *modeID,
		Input:  question,
	}, stream.SinkFunc(renderEvent))
	if err != nil {
		return fmt.Errorf("running turn: %w", err)
	}
	return nil
}

// renderEvent writes one stream event to the terminal.
func renderEvent(_ context.Context, ev stream.Event) error {
	switch ev.Type {
	case stream.TypeTextDelta:
		fmt.Print(ev.Text)
	case stream.TypeToolCallStart:
		fmt.Fprintf(os.Stderr, "* %s %s\n", ev.Tool.Name, ev.Tool.Args)
	case stream.TypeToolCallResult:
		if ev.Tool.Error != "" {
			fmt.Fprintf(os.Stderr, "* %s failed: %s\n", ev.Tool.Name, ev.Tool.Error)
		}
	case stream.TypeArtifact:
		fmt.Fprintf(os.Stderr, "* artifact: %s %s\n", ev.Artifact.Kind, ev.Artifact.Title)
	case stream.TypeDone:
		fmt.Println()
	case stream.TypeError:
		fmt.Fprintf(os.Stderr, "\nerror (%s): %s\n", ev.Error.Code, ev.Error.Message)
	}
	return nil
}

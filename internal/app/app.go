// Package app assembles the application: configuration, database,
// Genkit, search backends, stores, the agent, and the turn runner.
// Entry points in cmd/ call Setup (or SetupLocal) and read what they
// need off the returned App.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docketbot/docket/internal/config"
	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/prefs"
	"github.com/docketbot/docket/internal/search"
	"github.com/docketbot/docket/internal/tools"
	"github.com/docketbot/docket/internal/turn"
)

// App is the assembled application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool // nil in local mode

	Modes         *mode.Registry
	Conversations conversation.Store
	Preferences   prefs.Store
	Gateway       *search.Gateway
	Kit           *tools.Kit
	Runner        *turn.Runner
	Flow          *turn.Flow

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse construction order. Safe to call
// after a partially failed Setup.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Debug("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}

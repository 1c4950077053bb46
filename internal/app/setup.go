package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/docketbot/docket/db"
	"github.com/docketbot/docket/internal/agent"
	"github.com/docketbot/docket/internal/config"
	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/index"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/observability"
	"github.com/docketbot/docket/internal/prefs"
	"github.com/docketbot/docket/internal/search"
	"github.com/docketbot/docket/internal/tools"
	"github.com/docketbot/docket/internal/tracker"
	"github.com/docketbot/docket/internal/turn"
)

// Setup assembles the full application for the server entry points (serve,
// mcp): migrations plus connection pool, Genkit with the configured
// provider, both search backends, the tool kit, the agent, and
// Postgres-backed stores. Call Close on the returned App to release
// resources; Close is safe after a partially failed Setup.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be wired before genkit.Init so flows register against
	// the configured TracerProvider.
	a.otelCleanup = observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		ServiceName: cfg.Telemetry.ServiceName,
	}, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	semantic := provideSemanticBackend(g, pool, cfg, logger)
	structured := provideStructuredBackend(cfg, logger)
	a.Gateway = search.NewGateway(structured, semantic, cfg.Search, logger.With("component", "search"))

	kit, err := tools.NewKit(a.Gateway, logger.With("component", "tools"))
	if err != nil {
		return nil, err
	}
	a.Kit = kit
	refs := kit.Register(g)

	ag, err := agent.New(agent.Config{
		Generate: provideGenerate(g, cfg),
		Dispatch: kit,
		Tools:    refs,
		Logger:   logger.With("component", "agent"),
		MaxSteps: cfg.Agent.MaxSteps,
	})
	if err != nil {
		return nil, err
	}

	modes, err := mode.NewRegistry(ctx, mode.NewPGStore(pool), logger.With("component", "modes"))
	if err != nil {
		return nil, err
	}
	a.Modes = modes
	a.Conversations = conversation.NewPGStore(pool)
	a.Preferences = prefs.NewPGStore(pool)

	runner, err := turn.NewRunner(turn.Config{
		Agent:         ag,
		Modes:         modes,
		Conversations: a.Conversations,
		Preferences:   a.Preferences,
		Logger:        logger.With("component", "turn"),
		Threshold:     cfg.Agent.ClassifyThreshold,
	})
	if err != nil {
		return nil, err
	}
	a.Runner = runner
	a.Flow = runner.DefineFlow(g)

	return a, nil
}

// SetupLocal assembles the application for single-user entry points such
// as ask: in-memory stores, no database, no tracing. The legacy history
// file under the state directory is imported on first use.
func SetupLocal(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	// No pool locally, so semantic lookups report the index as missing
	// and the gateway surfaces structured results only.
	structured := provideStructuredBackend(cfg, logger)
	a.Gateway = search.NewGateway(structured, index.Disabled{}, cfg.Search, logger.With("component", "search"))

	kit, err := tools.NewKit(a.Gateway, logger.With("component", "tools"))
	if err != nil {
		return nil, err
	}
	a.Kit = kit
	refs := kit.Register(g)

	ag, err := agent.New(agent.Config{
		Generate: provideGenerate(g, cfg),
		Dispatch: kit,
		Tools:    refs,
		Logger:   logger.With("component", "agent"),
		MaxSteps: cfg.Agent.MaxSteps,
	})
	if err != nil {
		return nil, err
	}

	modes, err := mode.NewRegistry(ctx, mode.NewMemStore(), logger.With("component", "modes"))
	if err != nil {
		return nil, err
	}
	a.Modes = modes
	a.Conversations = conversation.NewMemStore()
	a.Preferences = prefs.NewMemStore()

	if _, err := conversation.MigrateLegacy(ctx, cfg.StateDir, turn.LocalUser, a.Conversations, logger); err != nil {
		// A corrupt history file should not block a fresh conversation.
		logger.Warn("legacy history import failed", "error", err)
	}

	runner, err := turn.NewRunner(turn.Config{
		Agent:         ag,
		Modes:         modes,
		Conversations: a.Conversations,
		Preferences:   a.Preferences,
		Logger:        logger.With("component", "turn"),
		Threshold:     cfg.Agent.ClassifyThreshold,
	})
	if err != nil {
		return nil, err
	}
	a.Runner = runner
	a.Flow = runner.DefineFlow(g)

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Debug("database pool ready", "host", cfg.PostgresHost, "database", cfg.PostgresDBName)
	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no model auto-discovery; register explicitly.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit", "provider", provider, "model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit", "provider", provider, "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", provider, "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init, looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideSemanticBackend wires the pgvector issue index when both an
// embedder and a pool are available. A missing embedder disables semantic
// fallback rather than failing startup.
func provideSemanticBackend(g *genkit.Genkit, pool *pgxpool.Pool, cfg *config.Config, logger log.Logger) search.SemanticBackend {
	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		logger.Warn("semantic index disabled, embedder not found",
			"embedder", cfg.EmbedderModel, "provider", cfg.Provider)
		return index.Disabled{}
	}
	store, err := index.NewStore(pool, embedder, logger.With("component", "index"))
	if err != nil {
		logger.Warn("semantic index disabled", "error", err)
		return index.Disabled{}
	}
	return store
}

// provideStructuredBackend wires the tracker client, or the unconfigured
// stub when no base URL is set so every search falls back to the index.
func provideStructuredBackend(cfg *config.Config, logger log.Logger) search.StructuredBackend {
	if cfg.Tracker.BaseURL == "" {
		logger.Warn("tracker not configured, structured search unavailable")
		return tracker.Unconfigured{}
	}
	client, err := tracker.NewClient(cfg.Tracker, logger.With("component", "tracker"))
	if err != nil {
		logger.Warn("tracker client unavailable", "error", err)
		return tracker.Unconfigured{}
	}
	return client
}

// provideGenerate binds the configured model into the agent's generate
// function. Sampling parameters only apply on the gemini path; other
// providers take their own defaults.
func provideGenerate(g *genkit.Genkit, cfg *config.Config) agent.GenerateFunc {
	model := cfg.FullModelName()

	var genCfg *genai.GenerateContentConfig
	switch cfg.Provider {
	case config.ProviderOllama, config.ProviderOpenAI:
	default:
		genCfg = &genai.GenerateContentConfig{}
		if cfg.Temperature > 0 {
			genCfg.Temperature = genai.Ptr(cfg.Temperature)
		}
		if cfg.MaxTokens > 0 {
			genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
		}
	}

	return func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
		base := []ai.GenerateOption{ai.WithModelName(model)}
		if genCfg != nil {
			base = append(base, ai.WithConfig(genCfg))
		}
		return genkit.Generate(ctx, g, append(base, opts...)...)
	}
}

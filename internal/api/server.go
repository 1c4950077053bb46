package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/prefs"
	"github.com/docketbot/docket/internal/search"
)

// Default rate limiter settings when the config leaves them zero.
const (
	defaultRateLimit = 1.0
	defaultRateBurst = 60
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Runner        TurnRunner         // Required
	Modes         *mode.Registry     // Required
	Conversations conversation.Store // Required
	Preferences   prefs.Store        // Required
	Gateway       *search.Gateway    // Required
	Pool          *pgxpool.Pool      // Optional: nil skips the DB ping in /ready
	CORSOrigins   []string           // Allowed origins for CORS
	TrustProxy    bool               // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateLimit     float64            // Tokens per second per IP (0 = default 1)
	RateBurst     int                // Burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("turn runner is required")
	}
	if cfg.Modes == nil {
		return nil, errors.New("mode registry is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Preferences == nil {
		return nil, errors.New("preference store is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("search gateway is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	th := &turnHandler{runner: cfg.Runner, logger: logger}
	mh := &modeHandler{registry: cfg.Modes, logger: logger}
	ch := &conversationHandler{store: cfg.Conversations, logger: logger}
	ph := &prefsHandler{store: cfg.Preferences, registry: cfg.Modes, logger: logger}
	sh := &searchHandler{gateway: cfg.Gateway, logger: logger}

	mux := http.NewServeMux()

	// Turns
	mux.HandleFunc("POST /api/v1/turns", th.run)

	// Modes
	mux.HandleFunc("GET /api/v1/modes", mh.list)
	mux.HandleFunc("POST /api/v1/modes", mh.create)
	mux.HandleFunc("GET /api/v1/modes/{id}", mh.get)
	mux.HandleFunc("PUT /api/v1/modes/{id}", mh.update)
	mux.HandleFunc("DELETE /api/v1/modes/{id}", mh.delete)
	mux.HandleFunc("POST /api/v1/modes/{id}/clone", mh.clone)

	// Conversations
	mux.HandleFunc("GET /api/v1/conversations", ch.list)
	mux.HandleFunc("GET /api/v1/conversations/{id}", ch.get)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", ch.delete)
	mux.HandleFunc("GET /api/v1/conversations/{id}/export", ch.export)

	// Preferences
	mux.HandleFunc("GET /api/v1/preferences", ph.get)
	mux.HandleFunc("PUT /api/v1/preferences", ph.put)

	// Search
	mux.HandleFunc("GET /api/v1/search", sh.search)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	rl := newRateLimiter(limit, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → User → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS
	// headers even when a client is throttled.
	var handler http.Handler = mux
	handler = userMiddleware(cfg.TrustProxy)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	behindProxy := cfg.TrustProxy
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, behindProxy)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

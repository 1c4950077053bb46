package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docketbot/docket/internal/log"
)

// readyTimeout bounds the database ping so a wedged pool cannot hang the
// readiness probe.
const readyTimeout = 2 * time.Second

// health is a simple liveness endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can take traffic. With a pool
// configured it pings the database; memory-backed deployments are always
// ready.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness ping failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database not reachable", logger)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

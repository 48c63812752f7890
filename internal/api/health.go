package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/project-o/assist/internal/log"
)

// health is a simple health check endpoint for Docker/Kubernetes probes.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can reach its database. A nil
// pool degrades to a plain ok so the endpoint stays useful in tests.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database not reachable", logger)
			return
		}

		stat := pool.Stat()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"total_conns":       stat.TotalConns(),
			"idle_conns":        stat.IdleConns(),
			"acquired_conns":    stat.AcquiredConns(),
			"max_conns":         stat.MaxConns(),
			"new_conns_count":   stat.NewConnsCount(),
			"acquire_duration":  stat.AcquireDuration().String(),
			"empty_acquire_cnt": stat.EmptyAcquireCount(),
		}, logger)
	}
}

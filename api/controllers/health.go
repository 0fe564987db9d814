package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sokoplace/sokoplace-backend/api/responses"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SokoPlace-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports whether the API's backing stores answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, database, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SokoPlace-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true

		checks["database"] = checkPing(ctx, logg, "database", database)
		checks["redis"] = checkPing(ctx, logg, "redis", cache)
		for _, status := range checks {
			if status != "ok" {
				ready = false
			}
		}

		payload := map[string]any{"status": "ready", "checks": checks}
		if !ready {
			payload["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, payload)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

func checkPing(ctx context.Context, logg *logger.Logger, name string, p pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		if logg != nil {
			logg.Error(ctx, name+" health check failed", err)
		}
		return "unavailable"
	}
	return "ok"
}

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildHandler wires all REST routes onto a chi router.
func buildHandler(gw *Gateway) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", anonscan.CodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "method_not_allowed")
	})

	// Root/help
	r.Get("/", gw.handleRoot)

	// Health / metrics
	r.Get("/health", gw.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(gw.traffic.Middleware())

		// Anonymous scans
		r.Group(func(r chi.Router) {
			r.Use(gw.deps.Verifier.Middleware())
			r.Post("/anonymous-scan", gw.handleAnonymousScanPost)
			r.Get("/anonymous-scan", gw.handleGetReport)
		})

		// Cron
		r.Get("/cron/warm-cache", gw.handleWarmCache)
	})

	return r
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(gw.startedAt).Seconds()),
	}
	if gw.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := gw.deps.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (gw *Gateway) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   "anonscan gateway",
		"status": "running",
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"POST /api/anonymous-scan",
			"GET /api/anonymous-scan?report_id={uuid}",
			"GET /api/cron/warm-cache",
		},
	})
}

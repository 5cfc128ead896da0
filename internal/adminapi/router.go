// Package adminapi exposes the Monitor Instance control surface (spec §4.4)
// over HTTP so monitorctl and the operator console can add/remove backends,
// start/stop monitors, and request maintenance or drain without restarting
// the daemon.
package adminapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clustermon/core/internal/metrics"
	"github.com/clustermon/core/internal/registry"
)

// RouterConfig holds configuration for the admin HTTP router.
type RouterConfig struct {
	Environment  string
	RateLimitRPS int
	JWTSecret    string // empty disables bearer auth (development only)

	// Metrics is optional; when set, every request is recorded into it.
	Metrics *metrics.APIMetrics

	// Factory builds the collaborators for monitors created through
	// POST /monitors. Required for that endpoint; the rest of the API
	// works against an empty zero-value Factory.
	Factory MonitorFactory
}

// NewRouter builds the chi router exposing the monitor registry's control
// surface, wrapped in the same middleware order the rest of this codebase
// uses for HTTP surfaces: request id, logging, recovery, rate limit,
// security headers, then auth.
func NewRouter(reg *registry.Registry, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimiter(cfg.RateLimitRPS))
	}
	r.Use(SecurityHeaders)

	h := &handlers{registry: reg, factory: cfg.Factory}

	r.Get("/healthz", h.health)

	r.Route("/monitors", func(mr chi.Router) {
		if cfg.JWTSecret != "" {
			mr.Use(BearerAuth(cfg.JWTSecret))
		}

		mr.Get("/", h.listMonitors)
		mr.Post("/", h.createMonitor)
		mr.Get("/{name}", h.getMonitor)
		mr.Post("/{name}/start", h.startMonitor)
		mr.Post("/{name}/stop", h.stopMonitor)
		mr.Post("/{name}/servers", h.addServer)
		mr.Delete("/{name}/servers/{server}", h.removeServer)
		mr.Post("/{name}/servers/{server}/maintenance", h.setMaintenance)
		mr.Delete("/{name}/servers/{server}/maintenance", h.clearMaintenance)
		mr.Post("/{name}/servers/{server}/drain", h.setDrain)
		mr.Delete("/{name}/servers/{server}/drain", h.clearDrain)
	})

	return r
}

// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/trendloom/harvester/internal/adapter/httpserver"
	"github.com/trendloom/harvester/internal/adapter/observability"
	"github.com/trendloom/harvester/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{"*"}
	}
	if s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	// Security & instrumentation middleware
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Read-only endpoints: settings/stats/health, no auth required.
	r.Get("/settings", srv.SettingsListHandler())
	r.Get("/settings/{platform}", srv.SettingsGetHandler())
	r.Get("/stats", srv.StatsHandler())
	r.Get("/health", srv.HealthHandler())
	r.Get("/healthz", srv.HealthHandler())
	r.Get("/readyz", srv.ReadyzHandler())

	// Mutating settings endpoints: rate limited and, when admin credentials
	// are configured, guarded by bearer JWT or a trusted SSO header.
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		if cfg.AdminEnabled() {
			wr.Use(srv.AdminAPIGuard())
			wr.Use(srv.CSRFGuard())
		}
		wr.Put("/settings/{platform}", srv.SettingsPutHandler())
		wr.Post("/settings/{platform}/enable", srv.SettingsEnableHandler())
		wr.Post("/settings/{platform}/disable", srv.SettingsDisableHandler())
	})

	// OpenAPI if present
	r.Get("/openapi.yaml", srv.OpenAPIServe())

	// Admin token issuance and auth-status probe, plus Prometheus scrape.
	if cfg.AdminEnabled() {
		srv.MountAdmin(r)
	}
	r.Get("/admin/prometheus", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes and middleware.
//
// The /track group is public and CORS-open: embedded scripts on arbitrary
// third-party pages must be able to POST without credentials. The /api
// group requires a dashboard session and is limited to the dashboard's
// own origins.
func SetupRoutes(h *Handlers, dashboardOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// Public ingestion: any origin, POST with Content-Type only, no
	// credentials.
	r.Route("/track", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Post("/activities/{activityID}/events", h.HandleTrackEvent)
		r.Get("/health", h.HandleHealth)
	})

	// Prometheus scrape endpoint (no auth, like /track/health).
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Dashboard queries: session cookie + project access.
	r.Route("/api", func(r chi.Router) {
		if len(dashboardOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   dashboardOrigins,
				AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(RequireSession(h.verifier))

		r.Route("/activities/{activityID}", func(r chi.Router) {
			r.Get("/metrics", h.HandleQueryMetrics)
			r.Get("/metrics/export", h.HandleExportMetrics)
			r.Delete("/metrics", h.HandleDeleteMetrics)
			r.Get("/visitors/{visitorID}/submissions", h.HandleVisitorSubmissions)
		})
	})

	return r
}

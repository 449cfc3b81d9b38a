// Package api exposes the engine over HTTP: a public CORS-open tracking
// group for the embedded client script and an authenticated query group
// for dashboard operators.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/popup-engine/internal/auth"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// Handlers bundles the services the HTTP layer dispatches into.
type Handlers struct {
	activities metrics.ActivityStore
	recorder   *metrics.Recorder
	engine     *metrics.Engine
	exporter   *metrics.Exporter
	verifier   auth.Verifier
}

// NewHandlers creates the handler set.
func NewHandlers(activities metrics.ActivityStore, recorder *metrics.Recorder, engine *metrics.Engine, exporter *metrics.Exporter, verifier auth.Verifier) *Handlers {
	return &Handlers{
		activities: activities,
		recorder:   recorder,
		engine:     engine,
		exporter:   exporter,
		verifier:   verifier,
	}
}

// Server is the engine's HTTP server.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer wires routes and middleware around the handlers.
func NewServer(h *Handlers, dashboardOrigins []string) *Server {
	return &Server{handler: SetupRoutes(h, dashboardOrigins)}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Exports can stream thousands of rows; give writes room.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

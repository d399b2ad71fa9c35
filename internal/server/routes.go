package server

import (
	"net/http"

	"github.com/ternarybob/hirescout/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket status stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// API routes - Authentication (interactive login)
	mux.HandleFunc("/api/auth/status", s.app.AuthHandler.GetAuthStatusHandler)
	mux.HandleFunc("/api/auth/begin", s.app.AuthHandler.BeginAuthHandler)
	mux.HandleFunc("/api/auth/confirm", s.app.AuthHandler.ConfirmAuthHandler)
	mux.HandleFunc("/api/auth/cancel", s.app.AuthHandler.CancelAuthHandler)

	// API routes - Extraction runs
	mux.HandleFunc("/api/extract", s.app.ExtractHandler.StartExtractionHandler)
	mux.HandleFunc("/api/runs", s.app.ExtractHandler.ListRunsHandler)
	mux.HandleFunc("/api/runs/", s.handleRunRoutes)

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.ListJobsHandler)
	mux.HandleFunc("/api/scheduler/jobs/", s.handleSchedulerRoutes)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/config", s.app.ConfigHandler.GetConfig)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleRunRoutes routes /api/runs/{id} and /api/runs/{id}/cancel
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, "/api/runs/")

	switch {
	case len(segments) == 1:
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
				s.app.ExtractHandler.GetRunHandler(w, r, segments[0])
			},
		})
	case len(segments) == 2 && segments[1] == "cancel":
		RouteByMethod(w, r, MethodRouter{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
				s.app.ExtractHandler.CancelRunHandler(w, r, segments[0])
			},
		})
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleSchedulerRoutes routes /api/scheduler/jobs/{name}/run
func (s *Server) handleSchedulerRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, "/api/scheduler/jobs/")

	if len(segments) == 2 && segments[1] == "run" {
		RouteByMethod(w, r, MethodRouter{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
				s.app.SchedulerHandler.RunJobHandler(w, r, segments[0])
			},
		})
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-amp/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/amp", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAmpRead)).Get("/", s.handleGetAmp)
				r.With(s.requirePermission(auth.PermAmpControl)).Post("/commands", s.handleAmpCommand)
				r.With(s.requirePermission(auth.PermAmpReadback)).Get("/readback", s.handleAmpReadback)
			})

			r.With(s.requirePermission(auth.PermHistoryRead)).Get("/history", s.handleListHistory)
		})
	})

	return r
}

// handleHealth returns the server and device health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	dh := s.amp.DeviceHealth()

	status := "ok"
	if dh.Failed {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"version":     s.version,
		"device_id":   dh.DeviceID,
		"initialised": dh.Initialised,
		"failed":      dh.Failed,
	})
}

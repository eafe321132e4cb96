/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RequestLogger: Structured request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

SECURITY NOTE:
  Authentication lives in front of this service; it forwards the caller
  identity in X-Actor-ID. Rate limiting is likewise a stateless
  middleware concern outside the engine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, logger *log.Logger, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/chores", func(r chi.Router) {
			r.Post("/", h.CreateChore)
			r.Get("/{id}", h.GetChore)
			r.Patch("/{id}", h.UpdateChore)
			r.Delete("/{id}", h.DeleteChore)
			r.Post("/{id}/disable", h.DisableChore)
			r.Post("/{id}/enable", h.EnableChore)
			r.Put("/{id}/assignees", h.SetAssignees)
			r.Post("/{id}/claim", h.ClaimChore)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Post("/{id}/complete", h.CompleteAssignment)
			r.Post("/{id}/approve", h.ApproveAssignment)
			r.Post("/{id}/reject", h.RejectAssignment)
		})

		r.Route("/people", func(r chi.Router) {
			r.Get("/{id}/assignments", h.ListAssignments)
			r.Get("/{id}/balance", h.GetBalance)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
			r.Get("/{id}/adjustments", h.ListAdjustments)
		})
	})

	return r
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

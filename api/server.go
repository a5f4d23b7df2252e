/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

SECURITY NOTE:
  No authentication middleware. The server is a teaching tool meant to
  run on localhost or a classroom network.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.StartRun)
			r.Get("/{id}/records", h.GetRecords)
			r.Get("/{id}/sales", h.GetSales)
			r.Get("/{id}/summary", h.GetSummary)
		})

		r.Post("/montecarlo", h.RunMonteCarlo)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Farm Community Simulator</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Farm Community Simulator API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
<li><a href="/api/runs">/api/runs</a> - List runs</li>
<li>POST /api/runs - Start a run</li>
<li>POST /api/montecarlo - Run a perturbed batch</li>
</ul>
</body>
</html>`))
	})

	return r
}

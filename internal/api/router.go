package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "podforge/internal/api/middleware"
	"podforge/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit      *mw.RateLimit
	AllowedOrigins []string

	HealthHandler    http.HandlerFunc
	SubmitHandler    http.HandlerFunc
	StatusHandler    http.HandlerFunc
	CancelHandler    http.HandlerFunc
	DeleteHandler    http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited routes
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/podcasts", orNotImplemented(deps.SubmitHandler))
		r.Get("/api/v1/podcasts/{jobID}", orNotImplemented(deps.StatusHandler))
		r.Post("/api/v1/podcasts/{jobID}/cancel", orNotImplemented(deps.CancelHandler))

		// Admin routes
		r.Delete("/api/v1/podcasts/{jobID}", orNotImplemented(deps.DeleteHandler))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

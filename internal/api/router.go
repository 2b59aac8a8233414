package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts all gateway routes. The chat stream route is kept
// outside the Timeout and Compress middleware: a timeout would cut
// long streams short and compression buffers chunks the browser needs
// to see as they arrive.
func NewRouter(eligibility *EligibilityHandler, chat *ChatHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.Compress(5))
		r.Get("/store/free-shipping-eligibility", eligibility.Check)
	})

	r.Route("/admin/analytics-chat", func(r chi.Router) {
		r.Use(AdminAuthMiddleware)
		r.Post("/", chat.Stream)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/current", chat.Current)
			r.Delete("/current", chat.Clear)
		})
	})

	return r
}

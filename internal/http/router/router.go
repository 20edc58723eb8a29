// Package router assembles the chi route tree of the dispatch API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"courier-dispatch/internal/http/handlers"
	appmw "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
)

const requestTimeout = 5 * time.Second

// Deps are the route handlers and middlewares. RateLimit and Metrics are optional.
type Deps struct {
	Base          *handlers.Handlers
	Couriers      *handlers.CourierHandler
	Assignments   *handlers.AssignmentHandler
	Admin         *handlers.AdminHandler
	Realtime      *handlers.RealtimeHandler
	Observability *appmw.Observability
	RateLimit     *ratelimit.Middleware
	Metrics       http.Handler
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Observability != nil {
		r.Use(d.Observability.Handler())
	}
	r.Use(middleware.Recoverer)

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		if d.RateLimit != nil {
			r.Use(d.RateLimit.Handler())
		}

		// live connections outlive any request timeout
		r.Get("/ws", d.Realtime.Serve)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Route("/couriers", func(r chi.Router) {
				r.Post("/", d.Couriers.Register)
				r.Get("/nearby", d.Couriers.Nearby)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", d.Couriers.Get)
					r.Post("/verify", d.Couriers.Verify)
					r.Post("/deactivate", d.Couriers.Deactivate)
					r.Put("/availability", d.Couriers.SetAvailability)
					r.Post("/location", d.Couriers.UpdateLocation)
				})
			})

			r.Route("/assignments", func(r chi.Router) {
				r.Post("/", d.Assignments.Assign)
				r.Post("/{id}/status", d.Assignments.UpdateStatus)
				r.Post("/{id}/cancel", d.Assignments.Cancel)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/connections", d.Admin.Connections)
				r.Get("/analytics", d.Admin.Analytics)
			})
		})
	})

	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	return r
}

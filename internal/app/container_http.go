package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	appmw "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/pprofserver"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/service/analytics"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/status"
)

type handlersIn struct {
	dig.In

	Cfg       *config.Config
	Logger    logx.Logger
	Couriers  *courier.Service
	Engine    *dispatch.Engine
	Machine   *status.Machine
	Analytics *analytics.Service
	Manager   *realtime.Manager
}

type handlersOut struct {
	dig.Out

	Base        *handlers.Handlers
	Couriers    *handlers.CourierHandler
	Assignments *handlers.AssignmentHandler
	Admin       *handlers.AdminHandler
	Realtime    *handlers.RealtimeHandler
}

func provideHandlers(in handlersIn) handlersOut {
	return handlersOut{
		Base:        handlers.New(in.Logger),
		Couriers:    handlers.NewCourierHandler(in.Logger, in.Couriers, in.Cfg.Dispatch.RadiusKm),
		Assignments: handlers.NewAssignmentHandler(in.Logger, in.Engine, in.Machine),
		Admin:       handlers.NewAdminHandler(in.Logger, in.Analytics, in.Manager),
		Realtime:    handlers.NewRealtimeHandler(in.Logger, in.Manager),
	}
}

func newObservability(reg *prometheus.Registry, logger logx.Logger) (*appmw.Observability, error) {
	return appmw.NewObservability(reg, logger)
}

type routerIn struct {
	dig.In

	Base          *handlers.Handlers
	Couriers      *handlers.CourierHandler
	Assignments   *handlers.AssignmentHandler
	Admin         *handlers.AdminHandler
	Realtime      *handlers.RealtimeHandler
	Observability *appmw.Observability
	RateLimit     *ratelimit.Middleware
	Registry      *prometheus.Registry
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Base:          in.Base,
		Couriers:      in.Couriers,
		Assignments:   in.Assignments,
		Admin:         in.Admin,
		Realtime:      in.Realtime,
		Observability: in.Observability,
		RateLimit:     in.RateLimit,
		Metrics:       promhttp.HandlerFor(in.Registry, promhttp.HandlerOpts{}),
	})
}

// provideServers builds the API server and, when enabled, the pprof server.
// WriteTimeout stays zero so live connections are not cut; REST routes carry
// their own request timeout.
func provideServers(cfg *config.Config, logger logx.Logger, mux http.Handler) serversOut {
	return serversOut{
		Main: &http.Server{
			Addr:              mainAddr(cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Pprof: pprofserver.NewServer(cfg.Pprof, logger),
	}
}

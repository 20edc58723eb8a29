package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/telemetry"
)

type workerMetricsOut struct {
	dig.Out

	Server *http.Server `name:"worker_metrics"`
}

// provideWorkerMetrics exposes the worker registry. Without an address the
// worker runs with no listener.
func provideWorkerMetrics(cfg *config.Config, reg *prometheus.Registry, tr *telemetry.Tracker) workerMetricsOut {
	if cfg.Worker.MetricsAddr == "" {
		return workerMetricsOut{}
	}
	return workerMetricsOut{Server: &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           newWorkerMux(reg, tr),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

func newWorkerMux(reg *prometheus.Registry, tr *telemetry.Tracker) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"in_flight": tr.InFlight()})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// Package middleware holds the HTTP middlewares shared by the routers.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/logx"
)

// Observability records request counters, latency histograms and an access log line.
type Observability struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	logger   logx.Logger
}

// NewObservability creates the collectors and registers them with reg when it is not nil.
func NewObservability(reg prometheus.Registerer, logger logx.Logger) (*Observability, error) {
	if logger == nil {
		logger = logx.Nop()
	}
	o := &Observability{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		logger: logger,
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{o.requests, o.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

// Handler returns chi-style middleware.
func (o *Observability) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			// route pattern, not the raw path, keeps label cardinality bounded
			path := pathPattern(r)
			tm := time.Since(start)
			status := strconv.Itoa(ww.Status())

			o.requests.WithLabelValues(r.Method, path, status).Inc()
			o.duration.WithLabelValues(r.Method, path, status).Observe(tm.Seconds())

			o.logger.Info("http request",
				logx.String("req_id", chimw.GetReqID(r.Context())),
				logx.String("method", r.Method),
				logx.String("path", path),
				logx.Int("status", ww.Status()),
				logx.Duration("duration", tm),
			)
		})
	}
}

func pathPattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// Package pprofserver exposes runtime profiles on a separate listener.
package pprofserver

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
)

const realm = `Basic realm="pprof"`

// Handler mounts the profiler under /debug. Loopback callers pass freely,
// everyone else needs the configured basic-auth credentials.
func Handler(cfg config.PprofConfig, logger logx.Logger) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	r := chi.NewRouter()
	r.Use(guard(cfg, logger))
	r.Mount("/debug", middleware.Profiler())
	return r
}

// NewServer builds the pprof http.Server; it is nil when profiling is disabled.
func NewServer(cfg config.PprofConfig, logger logx.Logger) *http.Server {
	if !cfg.Enabled {
		return nil
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func guard(cfg config.PprofConfig, logger logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLoopback(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			u, p, ok := r.BasicAuth()
			if cfg.User == "" || cfg.Pass == "" || !ok || !secureEq(u, cfg.User) || !secureEq(p, cfg.Pass) {
				logger.Warn("pprof access denied",
					logx.String("remote", r.RemoteAddr),
					logx.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", realm)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secureEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func isLoopback(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	return ip != nil && ip.IsLoopback()
}

package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paradigm4/arrayshim/internal/config"
)

// HealthChecker reports whether the gateway is ready to serve traffic.
// internal/httpapi's server implements it by resolving the backend host,
// so /healthz reflects something other than "the process is up."
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// MetricsServer serves /metrics and /healthz on a listener separate from
// the main gateway, so neither endpoint can ever shadow one of the
// gateway's own URIs or the .htpasswd rule on the main dispatch table.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer builds a MetricsServer from cfg. Returns nil if cfg is
// nil (metrics disabled).
func NewMetricsServer(cfg *config.PrometheusConfig, health HealthChecker, logger *slog.Logger) *MetricsServer {
	if cfg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.GetPath(), promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := health.Healthy(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "unhealthy: %s\n", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    cfg.GetListen(),
			Handler: mux,
		},
		logger: logger,
	}
}

// Start runs the metrics server in a goroutine and returns immediately.
func (s *MetricsServer) Start() error {
	if s == nil {
		return nil
	}
	go func() {
		s.logger.Info("starting metrics server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Enabled returns true if a metrics listener is configured.
func (s *MetricsServer) Enabled() bool { return s != nil && s.server != nil }

// Addr returns the configured listen address.
func (s *MetricsServer) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

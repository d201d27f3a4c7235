package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsServer serves Prometheus metrics on a separate listener.
type MetricsServer struct {
	server *http.Server
	logger zerolog.Logger
}

// NewMetricsServer creates a metrics HTTP server serving gatherer at path.
func NewMetricsServer(addr, path string, gatherer prometheus.Gatherer, logger zerolog.Logger) *MetricsServer {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "MetricsServer").Logger(),
	}
}

// Start begins serving metrics in a blocking call.
// Returns http.ErrServerClosed on graceful shutdown.
func (ms *MetricsServer) Start() error {
	ms.logger.Info().Str("addr", ms.server.Addr).Msg("Starting metrics server")
	return ms.server.ListenAndServe()
}

// Serve is Start on an existing listener.
func (ms *MetricsServer) Serve(l net.Listener) error {
	ms.logger.Info().Str("addr", l.Addr().String()).Msg("Starting metrics server")
	return ms.server.Serve(l)
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

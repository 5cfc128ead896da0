package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clustermon/core/internal/logger"
)

// Server exposes the Prometheus /metrics endpoint and a /health liveness
// probe for the daemon process, separate from the admin API's own HTTP
// listener so metrics scraping never competes with control-plane traffic.
type Server struct {
	port       int
	server     *http.Server
	apiMetrics *APIMetrics
	stopSample chan struct{}
}

// NewMetricsServer creates a metrics server. apiMetrics may be nil, in
// which case only the process-wide Prometheus collectors (go_*) are
// exposed and no periodic runtime sampling runs.
func NewMetricsServer(port int, apiMetrics *APIMetrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		port: port,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		apiMetrics: apiMetrics,
		stopSample: make(chan struct{}),
	}
}

// Start begins serving metrics on the configured port. Blocks until the
// server is shut down.
func (s *Server) Start() error {
	if s.apiMetrics != nil {
		go s.sampleRuntimeStats()
	}

	logger.Logger.Info().Int("port", s.port).Msg("metrics_server_listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the metrics server and runtime sampler.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopSample)
	return s.server.Shutdown(ctx)
}

func (s *Server) sampleRuntimeStats() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.apiMetrics.collectRuntimeStats()
		case <-s.stopSample:
			return
		}
	}
}

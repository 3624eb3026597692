package watch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/metrics"
)

// Health is served on /healthz.
type Health struct {
	Status    string    `json:"status"`
	Cycles    int       `json:"cycles"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// MetricsServer serves /metrics and /healthz.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// NewMetricsServer binds addr. health is called for every /healthz request.
func NewMetricsServer(addr string, rec *metrics.PrometheusRecorder, health func() Health, logger *slog.Logger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.HTTPHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(health())
	})
	return &MetricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Start serves in the background. Serve errors are sent on the returned
// channel.
func (m *MetricsServer) Start() <-chan error {
	errCh := make(chan error, 1)
	m.logger.Info("Serving metrics", slog.String("addr", m.Addr()))
	go func() {
		if err := m.server.Serve(m.listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the server gracefully.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("Metrics server shutdown failed", logfields.Error(err))
		return err
	}
	return nil
}

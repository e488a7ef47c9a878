// Package gateway is the client-facing edge of the runtime: a WebSocket
// control plane that dispatches send/cancel/reset/resume, runs generations
// through the orchestrator, forwards StreamEvents in emission order, and
// enforces the one-active-generation-per-session discipline with FIFO
// queueing behind it.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentrt/agentrt/internal/compactor"
	"github.com/agentrt/agentrt/internal/config"
	"github.com/agentrt/agentrt/internal/contextstore"
	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/internal/orchestrator"
	"github.com/agentrt/agentrt/internal/sessions"
	"github.com/agentrt/agentrt/internal/tools"
)

// Server wires the runtime together and serves the WebSocket gateway plus
// the metrics endpoint.
type Server struct {
	cfg          *config.Config
	logger       *observability.Logger
	metrics      *observability.Metrics
	sessions     *sessions.Manager
	registry     *tools.Registry
	orchestrator *orchestrator.Orchestrator
	compactor    *compactor.Compactor
	loader       contextstore.Loader

	httpServer    *http.Server
	metricsServer *http.Server
}

// Deps are the collaborators main wires in.
type Deps struct {
	Config       *config.Config
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	Sessions     *sessions.Manager
	Registry     *tools.Registry
	Orchestrator *orchestrator.Orchestrator
	Compactor    *compactor.Compactor
	Loader       contextstore.Loader
}

// NewServer builds a Server; it does not start listening.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Server{
		cfg:          deps.Config,
		logger:       logger,
		metrics:      deps.Metrics,
		sessions:     deps.Sessions,
		registry:     deps.Registry,
		orchestrator: deps.Orchestrator,
		compactor:    deps.Compactor,
		loader:       deps.Loader,
	}
}

// Start begins serving and blocks until ctx is cancelled or a listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.wsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:              s.cfg.Gateway.BindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info(ctx, "gateway listening", "addr", s.cfg.Gateway.BindAddr)

	if s.cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		s.metricsServer = &http.Server{
			Addr:              s.cfg.Gateway.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		s.logger.Info(ctx, "metrics listening", "addr", s.cfg.Gateway.MetricsAddr)
	}

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops both listeners gracefully.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Package server is the control-plane HTTP surface: node registration and
// migration job submission/inspection, backed by a job.Store and a
// node.Registry (C5, C6 are driven from here; the job runner itself lives in
// internal/runner and polls the same job.Store independently).
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"replicator/internal/job"
	"replicator/internal/logging"
	"replicator/internal/node"
)

// Config configures a Server.
type Config struct {
	Jobs   job.Store
	Nodes  node.Registry
	Logger *slog.Logger
}

// Server is the control-plane HTTP server.
type Server struct {
	jobs   job.Store
	nodes  node.Registry
	logger *slog.Logger

	jobsEnqueued atomic.Int64

	httpServer *http.Server
	listener   net.Listener
}

// New returns a Server. Call Run to serve on addr.
func New(cfg Config) *Server {
	return &Server{
		jobs:   cfg.Jobs,
		nodes:  cfg.Nodes,
		logger: logging.Default(cfg.Logger).With("component", "controlplane-server"),
	}
}

// Handler builds the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /nodes/register", s.handleRegisterNode)
	mux.HandleFunc("GET /nodes", s.handleListNodes)
	mux.HandleFunc("GET /nodes/{name}", s.handleGetNode)
	mux.HandleFunc("POST /jobs/migrate", s.handleCreateJob)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", handleHealthz)
	return withRequestID(withLogging(s.logger, mux))
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("control-plane server starting", "addr", s.listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("control-plane server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Addr returns the listener address. Only valid after Run has started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

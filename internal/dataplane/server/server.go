// Package server is the data-plane HTTP surface (C3): chunk and object
// endpoints backed by a chunk.Store and a manifest.Store.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"replicator/internal/chunk"
	"replicator/internal/logging"
	"replicator/internal/manifest"
)

// Config configures a Server.
type Config struct {
	Chunks           *chunk.Store
	Manifests        manifest.Store
	DefaultChunkSize int64 // default chunk size for ingest, bytes; default 1 MiB
	Logger           *slog.Logger
}

// Server is the data-plane HTTP server.
type Server struct {
	chunks           *chunk.Store
	manifests        manifest.Store
	defaultChunkSize int64
	logger           *slog.Logger
	metrics          *metrics

	httpServer *http.Server
	listener   net.Listener
}

const defaultChunkSizeBytes = 1 << 20 // 1 MiB, per spec.md §4.4

// New returns a Server. Call Run to serve on addr.
func New(cfg Config) *Server {
	chunkSize := cfg.DefaultChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSizeBytes
	}
	return &Server{
		chunks:           cfg.Chunks,
		manifests:        cfg.Manifests,
		defaultChunkSize: chunkSize,
		logger:           logging.Default(cfg.Logger).With("component", "dataplane-server"),
		metrics:          newMetrics(),
	}
}

// Handler builds the routed http.Handler, wrapped in request-ID and
// logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("HEAD /chunks/{hash}", s.handleHeadChunk)
	mux.HandleFunc("GET /chunks/{hash}", s.handleGetChunk)
	mux.HandleFunc("PUT /chunks/{hash}", s.handlePutChunk)
	mux.HandleFunc("POST /objects/{id}/ingest", s.handleIngest)
	mux.HandleFunc("GET /objects/{id}", s.handleDownloadObject)
	mux.HandleFunc("GET /objects/{id}/manifest", s.handleGetManifest)
	mux.HandleFunc("PUT /objects/{id}/manifest", s.handlePutManifest)
	mux.HandleFunc("GET /metrics", s.metrics.handle)
	mux.HandleFunc("GET /healthz", handleHealthz)

	return withRequestID(withLogging(s.logger, mux))
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Run listens on addr and serves until ctx is cancelled, mirroring the
// teacher's ingester Run(ctx) lifecycle shape (listen, serve in background,
// select on ctx.Done()/server error, graceful Shutdown).
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

	s.logger.Info("data-plane server starting", "addr", s.listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("data-plane server stopping")
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

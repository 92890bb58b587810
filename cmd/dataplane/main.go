// Command dataplane serves the content-addressed chunk store and object
// ingest/reassembly HTTP surface (C1-C4).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"replicator/internal/chunk"
	"replicator/internal/dataplane/server"
	"replicator/internal/manifest/sqlite"
)

// settings is populated from environment variables, matching the original
// system's core/config.py scope: two screens of os.Getenv, no flag library.
type settings struct {
	host             string
	port             string
	databaseURL      string
	blobRoot         string
	defaultChunkSize int64
	compression      bool
	logLevel         slog.Level
}

func loadSettings() settings {
	s := settings{
		host:             getenv("DATA_PLANE_HOST", "0.0.0.0"),
		port:             getenv("DATA_PLANE_PORT", "8081"),
		databaseURL:      getenv("DATABASE_URL", "dataplane.db"),
		blobRoot:         getenv("BLOB_ROOT", "blobs"),
		defaultChunkSize: 1 << 20,
		compression:      getenv("CHUNK_COMPRESSION", "") == "zstd",
		logLevel:         parseLevel(getenv("LOG_LEVEL", "info")),
	}
	if v := os.Getenv("DEFAULT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			s.defaultChunkSize = n
		}
	}
	return s
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(v string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func main() {
	cfg := loadSettings()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("data-plane exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg settings, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	compression := chunk.CompressionNone
	if cfg.compression {
		compression = chunk.CompressionZstd
	}
	chunks, err := chunk.NewStore(chunk.Config{
		Root:        cfg.blobRoot,
		Compression: compression,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer chunks.Close()

	manifests, err := sqlite.Open(cfg.databaseURL)
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}
	defer manifests.Close()

	srv := server.New(server.Config{
		Chunks:           chunks,
		Manifests:        manifests,
		DefaultChunkSize: cfg.defaultChunkSize,
		Logger:           logger,
	})

	addr := cfg.host + ":" + cfg.port
	return srv.Run(ctx, addr)
}

// Command controlplane runs the durable job queue, node registry, job
// runner, and migration engine (C5-C8).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/time/rate"

	"replicator/internal/controlplane/server"
	"replicator/internal/dbutil"
	"replicator/internal/httpclient"
	jobsqlite "replicator/internal/job/sqlite"
	"replicator/internal/migration"
	nodesqlite "replicator/internal/node/sqlite"
	"replicator/internal/runner"
)

type settings struct {
	host        string
	port        string
	databaseURL string
	logLevel    slog.Level

	pollInterval    time.Duration
	maxConcurrency  int
	rateLimitPerSec float64
	rateLimitBurst  int
}

func loadSettings() settings {
	return settings{
		host:            getenv("CONTROL_PLANE_HOST", "0.0.0.0"),
		port:            getenv("CONTROL_PLANE_PORT", "8080"),
		databaseURL:     getenv("DATABASE_URL", "controlplane.db"),
		logLevel:        parseLevel(getenv("LOG_LEVEL", "info")),
		pollInterval:    2 * time.Second,
		maxConcurrency:  4,
		rateLimitPerSec: 50,
		rateLimitBurst:  10,
	}
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
		logger.Error("control-plane exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg settings, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Jobs and nodes share one database file/connection (§5's single-writer
	// control-plane process), disambiguated in schema_migrations by
	// component name — see dbutil.RunMigrations.
	db, err := dbutil.Open(cfg.databaseURL)
	if err != nil {
		return fmt.Errorf("open control-plane database: %w", err)
	}
	defer db.Close()

	jobs, err := jobsqlite.OpenWithDB(db)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	nodes, err := nodesqlite.OpenWithDB(db)
	if err != nil {
		return fmt.Errorf("open node registry: %w", err)
	}

	client := httpclient.New(httpclient.Config{
		RateLimit: rate.Limit(cfg.rateLimitPerSec),
		Burst:     cfg.rateLimitBurst,
		Retry:     httpclient.DefaultRetryPolicy,
		Logger:    logger,
	})

	engine := migration.New(migration.Config{
		Client:         client,
		MaxConcurrency: cfg.maxConcurrency,
		Logger:         logger,
	})

	jobRunner, err := runner.New(runner.Config{
		Jobs:         jobs,
		Nodes:        nodes,
		Engine:       engine,
		PollInterval: cfg.pollInterval,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create job runner: %w", err)
	}
	if err := jobRunner.Start(ctx); err != nil {
		return fmt.Errorf("start job runner: %w", err)
	}
	defer jobRunner.Stop()

	srv := server.New(server.Config{
		Jobs:   jobs,
		Nodes:  nodes,
		Logger: logger,
	})

	addr := cfg.host + ":" + cfg.port
	return srv.Run(ctx, addr)
}

// Package migration implements the delta-transfer replication protocol
// (C7): fetch a manifest from a source node, determine which chunks the
// destination is missing, copy only those, then install the manifest on
// the destination.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"replicator/internal/httpclient"
	"replicator/internal/logging"
	"replicator/internal/manifest"
)

// Report summarizes one migration run, logged by the job runner at the
// succeeded transition (not persisted as its own row — the job's terminal
// status is the durable record).
type Report struct {
	TotalChunks   int
	MissingChunks int
	CopiedChunks  int
}

// Config configures an Engine.
type Config struct {
	Client         *httpclient.Client
	MaxConcurrency int // bounded fan-out for parallel chunk copy, default 4
	Logger         *slog.Logger
}

// Engine runs delta-transfer migrations between two data-plane nodes
// addressed by base URL.
type Engine struct {
	client         *httpclient.Client
	maxConcurrency int
	logger         *slog.Logger
}

// New returns an Engine.
func New(cfg Config) *Engine {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 4
	}
	return &Engine{
		client:         cfg.Client,
		maxConcurrency: maxConcurrency,
		logger:         logging.Default(cfg.Logger).With("component", "migration"),
	}
}

// manifestDTO is the wire shape of §6's manifest GET/PUT endpoints.
type manifestDTO struct {
	ObjectID  string   `json:"object_id"`
	SizeBytes int64    `json:"size_bytes"`
	ChunkSize int64    `json:"chunk_size"`
	Chunks    []string `json:"chunks"`
}

// Migrate replicates objectID from srcBase to dstBase (both full node base
// URLs, e.g. "http://node-a:8081"), following the protocol in spec §4.7:
//  1. fetch the manifest from the source
//  2. compute the set of chunks the destination is missing (deduped by
//     hash, HEAD-probed against the destination)
//  3. copy missing chunks in parallel, bounded by maxConcurrency
//  4. install the manifest on the destination, only after every copy
//     succeeds, so destination readers never observe a manifest that
//     references an absent chunk
func (e *Engine) Migrate(ctx context.Context, srcBase, dstBase, objectID string) (Report, error) {
	var src manifestDTO
	if err := e.client.GetJSON(ctx, srcBase+"/objects/"+objectID+"/manifest", &src); err != nil {
		return Report{}, fmt.Errorf("migration: fetch manifest for %s from %s: %w", objectID, srcBase, err)
	}
	// §4.7 step 1, §8: an empty chunk list is a migration error, distinct
	// from ingest's acceptance of an empty body as a valid zero-chunk
	// manifest — the two operations have different rules by design.
	if len(src.Chunks) == 0 {
		return Report{}, fmt.Errorf("migration: manifest for %s has an empty chunk list", objectID)
	}

	unique := dedupe(src.Chunks)
	missing, err := e.missingChunks(ctx, dstBase, unique)
	if err != nil {
		return Report{}, err
	}

	if err := e.copyChunks(ctx, srcBase, dstBase, missing); err != nil {
		return Report{}, err
	}

	dst := manifest.Manifest{
		ObjectID:  src.ObjectID,
		SizeBytes: src.SizeBytes,
		ChunkSize: src.ChunkSize,
		Chunks:    src.Chunks,
	}
	if err := e.client.PutJSON(ctx, dstBase+"/objects/"+objectID+"/manifest", manifestDTO(dst)); err != nil {
		return Report{}, fmt.Errorf("migration: install manifest for %s on %s: %w", objectID, dstBase, err)
	}

	e.logger.Info("migration complete", "object_id", objectID, "src", srcBase, "dst", dstBase,
		"total_chunks", len(unique), "missing_chunks", len(missing), "copied_chunks", len(missing))

	return Report{
		TotalChunks:   len(unique),
		MissingChunks: len(missing),
		CopiedChunks:  len(missing),
	}, nil
}

func dedupe(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// missingChunks HEAD-probes dst for each hash in order and returns those
// that come back 404. Any other non-200 status is a protocol error (§4.7
// step 2): retryable transport/5xx failures are already retried inside
// httpclient.Client, so by the time missingChunks sees an error here it is
// a terminal one.
func (e *Engine) missingChunks(ctx context.Context, dstBase string, hashes []string) ([]string, error) {
	var missing []string
	for _, h := range hashes {
		status, err := e.client.Head(ctx, dstBase+"/chunks/"+h)
		if err != nil {
			return nil, fmt.Errorf("migration: probe chunk %s on %s: %w", h, dstBase, err)
		}
		switch status {
		case http.StatusOK:
			// already present, nothing to copy
		case http.StatusNotFound:
			missing = append(missing, h)
		default:
			return nil, fmt.Errorf("migration: unexpected status %d probing chunk %s on %s", status, h, dstBase)
		}
	}
	return missing, nil
}

// copyChunks fetches each missing hash from src and writes it to dst, up to
// maxConcurrency at a time. The first failure cancels the remaining
// in-flight and queued work.
func (e *Engine) copyChunks(ctx context.Context, srcBase, dstBase string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for _, h := range hashes {
		h := h
		g.Go(func() error {
			data, err := e.client.GetBytes(gctx, srcBase+"/chunks/"+h)
			if err != nil {
				return fmt.Errorf("migration: fetch chunk %s from %s: %w", h, srcBase, err)
			}
			if err := e.client.PutBytes(gctx, dstBase+"/chunks/"+h, data); err != nil {
				return fmt.Errorf("migration: store chunk %s on %s: %w", h, dstBase, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Package chunk implements content-addressed blob storage on a local
// filesystem: an immutable byte sequence is keyed by the hex SHA-256 of its
// contents, written atomically, and read back idempotently.
package chunk

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"replicator/internal/logging"
)

// ErrNotFound is returned by Read when the requested hash has no stored blob.
var ErrNotFound = errors.New("chunk: not found")

// ErrInvalidHash is returned when a caller passes a key that isn't a
// well-formed 64-character lowercase hex SHA-256 digest.
var ErrInvalidHash = errors.New("chunk: invalid hash")

// CompressionType selects the on-disk encoding for stored chunk bytes.
// It never affects the value returned by Read, which is always the exact
// bytes originally written — compression is an at-rest storage detail.
type CompressionType int

const (
	// CompressionNone stores chunk bytes verbatim.
	CompressionNone CompressionType = iota
	// CompressionZstd compresses chunk bytes with zstd before writing.
	CompressionZstd
)

// Config configures a Store.
type Config struct {
	// Root is the directory blobs are stored under. Required.
	Root string

	// Compression selects the at-rest encoding. Defaults to CompressionNone.
	Compression CompressionType

	// Logger receives lifecycle events, scoped with component="chunk-store".
	// A nil Logger discards all output.
	Logger *slog.Logger
}

// Store is content-addressed blob storage rooted at a directory. Each blob
// is stored at <root>/<hash[:2]>/<hash>, bounding per-directory fan-out to
// 256 entries. Store is safe for concurrent use: concurrent writers of
// distinct hashes never collide, and concurrent writers of the same hash are
// serialized by the atomic-rename discipline in write.
type Store struct {
	root        string
	compression CompressionType
	logger      *slog.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewStore creates a Store rooted at cfg.Root. The root directory is created
// on demand by Write, not here.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("chunk: root directory is required")
	}

	s := &Store{
		root:        cfg.Root,
		compression: cfg.Compression,
		logger:      logging.Default(cfg.Logger).With("component", "chunk-store"),
	}

	if cfg.Compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("chunk: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("chunk: create zstd decoder: %w", err)
		}
		s.enc = enc
		s.dec = dec
	}

	return s, nil
}

// Close releases the encoder/decoder when compression is enabled. Safe to
// call on a Store created without compression.
func (s *Store) Close() error {
	if s.enc != nil {
		s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return nil
}

func (s *Store) pathFor(hash string) (string, error) {
	if !ValidHash(hash) {
		return "", ErrInvalidHash
	}
	return filepath.Join(s.root, hash[:2], hash), nil
}

// Exists reports whether a blob is stored at hash.
func (s *Store) Exists(hash string) (bool, error) {
	p, err := s.pathFor(hash)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("chunk: stat %s: %w", hash, err)
	}
	return info.Mode().IsRegular(), nil
}

// Read returns the exact bytes written for hash, decompressing transparently
// if the store was configured with compression. Returns ErrNotFound if
// absent.
func (s *Store) Read(hash string) ([]byte, error) {
	p, err := s.pathFor(hash)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chunk: read %s: %w", hash, err)
	}
	if s.dec == nil {
		return raw, nil
	}
	out, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("chunk: decompress %s: %w", hash, err)
	}
	return out, nil
}

// Write stores data at hash. If a blob already exists at hash the call is a
// no-op (idempotent PUT) — the existing bytes are never rewritten, so two
// concurrent writers of the same hash never tear each other's output.
// Otherwise data is written to a sibling temp file in the same directory
// and atomically renamed into place, so a reader never observes a partial
// file.
func (s *Store) Write(hash string, data []byte) error {
	p, err := s.pathFor(hash)
	if err != nil {
		return err
	}

	if exists, err := s.Exists(hash); err != nil {
		return err
	} else if exists {
		return nil
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("chunk: create dir %s: %w", dir, err)
	}

	payload := data
	if s.enc != nil {
		payload = s.enc.EncodeAll(data, nil)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+hash+"-*")
	if err != nil {
		return fmt.Errorf("chunk: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("chunk: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chunk: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, p); err != nil {
		if errors.Is(err, os.ErrExist) {
			// Another writer won the race; our bytes are redundant.
			return nil
		}
		return fmt.Errorf("chunk: rename into place: %w", err)
	}

	s.logger.Debug("chunk written", "hash", hash, "bytes", len(data))
	return nil
}

// Package manifest defines the object manifest record and the store
// interface data-plane nodes use to persist it. A manifest maps an
// object_id to the ordered list of chunk hashes that reassemble it.
package manifest

import (
	"context"
	"errors"
	"fmt"

	"replicator/internal/chunk"
)

// MaxObjectIDLength is the upper bound on object_id length (§3).
const MaxObjectIDLength = 256

// ErrNotFound is returned when no manifest exists for an object_id.
var ErrNotFound = errors.New("manifest: not found")

// ErrInvalid is returned when a manifest fails validation.
var ErrInvalid = errors.New("manifest: invalid")

// Manifest is the tuple (object_id, size_bytes, chunk_size, chunks[]).
type Manifest struct {
	ObjectID  string
	SizeBytes int64
	ChunkSize int64
	Chunks    []string
}

// ValidateObjectID reports whether id satisfies the 1..256 character,
// non-empty constraint from §3.
func ValidateObjectID(id string) error {
	if len(id) == 0 || len(id) > MaxObjectIDLength {
		return fmt.Errorf("%w: object_id must be 1..%d characters", ErrInvalid, MaxObjectIDLength)
	}
	return nil
}

// Validate checks the invariants from spec §3:
//   - size_bytes = sum of chunk lengths (only checkable by the caller who
//     knows actual chunk lengths; here we only check structural invariants)
//   - chunk_size > 0 when there is at least one chunk
//   - every chunk hash is a well-formed 64-hex digest
//
// Validate does not require a non-empty chunk list: empty manifests are a
// documented, accepted edge case for ingest (see SPEC_FULL.md, Open
// Question: empty ingest). Callers that must reject empty manifests (the
// migration engine's fetch step, §4.7 step 1) check len(Chunks) themselves.
func (m Manifest) Validate() error {
	if err := ValidateObjectID(m.ObjectID); err != nil {
		return err
	}
	if len(m.Chunks) > 0 && m.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalid)
	}
	for i, h := range m.Chunks {
		if !chunk.ValidHash(h) {
			return fmt.Errorf("%w: chunk %d has malformed hash %q", ErrInvalid, i, h)
		}
	}
	return nil
}

// Store is a keyed manifest record store: primary key object_id. Upsert is
// last-writer-wins with no version check (§3, §9).
type Store interface {
	Get(ctx context.Context, objectID string) (Manifest, error)
	Upsert(ctx context.Context, m Manifest) error
}

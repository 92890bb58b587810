package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"replicator/internal/chunk"
	"replicator/internal/manifest"
)

const maxIngestBodyBytes = 1 << 30 // 1 GiB upper bound on a single ingest body

// manifestDTO is the wire shape of the manifest GET/PUT endpoints (§6).
// chunks_json never appears on the wire — callers always see this
// structured form.
type manifestDTO struct {
	ObjectID  string   `json:"object_id"`
	SizeBytes int64    `json:"size_bytes"`
	ChunkSize int64    `json:"chunk_size"`
	Chunks    []string `json:"chunks"`
}

func toDTO(m manifest.Manifest) manifestDTO {
	return manifestDTO{ObjectID: m.ObjectID, SizeBytes: m.SizeBytes, ChunkSize: m.ChunkSize, Chunks: m.Chunks}
}

// handleIngest reads the request body fully, splits it into fixed-size
// chunks, writes only the chunks not already present, and upserts the
// resulting manifest (§4.4). An empty body is accepted and produces a
// manifest with an empty chunk list and size_bytes=0 (the documented
// resolution of the "empty ingest" open question).
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("id")
	if err := manifest.ValidateObjectID(objectID); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	chunkSize := s.defaultChunkSize
	if h := r.Header.Get("X-Chunk-Size"); h != "" {
		n, err := strconv.ParseInt(h, 10, 64)
		if err != nil || n <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		chunkSize = n
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBodyBytes+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > maxIngestBodyBytes {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	hashes := make([]string, 0, (len(body)/int(chunkSize))+1)
	for offset := 0; offset < len(body); offset += int(chunkSize) {
		end := offset + int(chunkSize)
		if end > len(body) {
			end = len(body)
		}
		piece := body[offset:end]
		h := chunk.Sum(piece)

		existed, err := s.chunks.Exists(h)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !existed {
			if err := s.chunks.Write(h, piece); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			s.metrics.dedupeMisses.Add(1)
		} else {
			s.metrics.dedupeHits.Add(1)
		}
		s.metrics.chunksPut.Add(1)
		hashes = append(hashes, h)
	}
	s.metrics.bytesIn.Add(int64(len(body)))

	m := manifest.Manifest{
		ObjectID:  objectID,
		SizeBytes: int64(len(body)),
		ChunkSize: chunkSize,
		Chunks:    hashes,
	}
	if err := s.manifests.Upsert(r.Context(), m); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toDTO(m))
}

// handleDownloadObject loads the manifest and streams the concatenated
// chunk bytes in order. A missing referenced chunk is a server error
// naming the missing hash, per §4.4: this indicates a broken invariant,
// not a client mistake. Presence of every chunk is checked before the
// response headers are written.
func (s *Server) handleDownloadObject(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("id")
	if err := manifest.ValidateObjectID(objectID); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m, err := s.manifests.Get(r.Context(), objectID)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	for _, h := range m.Chunks {
		if ok, err := s.chunks.Exists(h); err != nil || !ok {
			s.logger.Error("download: missing referenced chunk", "object_id", objectID, "hash", h, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("missing referenced chunk %s", h)})
			return
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	var written int64
	for _, h := range m.Chunks {
		data, err := s.chunks.Read(h)
		if err != nil {
			// Headers are already sent; the only honest signal left is to
			// stop writing. The client sees a truncated response.
			s.logger.Error("download: missing referenced chunk", "object_id", objectID, "hash", h, "error", err)
			return
		}
		n, werr := w.Write(data)
		written += int64(n)
		if werr != nil {
			return
		}
	}
	s.metrics.bytesOut.Add(written)
}

func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("id")
	if err := manifest.ValidateObjectID(objectID); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m, err := s.manifests.Get(r.Context(), objectID)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(m))
}

type putManifestRequest struct {
	SizeBytes int64    `json:"size_bytes"`
	ChunkSize int64    `json:"chunk_size"`
	Chunks    []string `json:"chunks"`
}

type putManifestResponse struct {
	Status   string   `json:"status"`
	ObjectID string   `json:"object_id"`
	Chunks   []string `json:"chunks"`
}

// handlePutManifest installs a manifest directly, used by the migration
// engine's final delta-transfer step (§4.7 step 4): it must only be called
// after every referenced chunk is already present on this node.
func (s *Server) handlePutManifest(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("id")
	if err := manifest.ValidateObjectID(objectID); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req putManifestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m := manifest.Manifest{
		ObjectID:  objectID,
		SizeBytes: req.SizeBytes,
		ChunkSize: req.ChunkSize,
		Chunks:    req.Chunks,
	}
	if err := m.Validate(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, err.Error())
		return
	}

	if err := s.manifests.Upsert(r.Context(), m); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, putManifestResponse{Status: "stored", ObjectID: objectID, Chunks: m.Chunks})
}

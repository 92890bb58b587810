package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"replicator/internal/chunk"
)

const maxChunkBodyBytes = 16 << 20 // generous upper bound on a single chunk PUT body

func (s *Server) handleHeadChunk(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	s.metrics.chunksHead.Add(1)

	exists, err := s.chunks.Exists(hash)
	if err != nil {
		if errors.Is(err, chunk.ErrInvalidHash) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	s.metrics.chunksGet.Add(1)

	data, err := s.chunks.Read(hash)
	if err != nil {
		if errors.Is(err, chunk.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if errors.Is(err, chunk.ErrInvalidHash) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
	s.metrics.bytesOut.Add(int64(len(data)))
}

type putChunkResponse struct {
	Status string `json:"status"`
	Hash   string `json:"hash"`
	Bytes  int    `json:"bytes"`
}

// handlePutChunk implements the idempotent chunk write in spec §6: the
// caller asserts the hash, the body is not re-hashed before storage (§9
// "Body-hash verification choice" — the sender is the authority on H, a
// trust boundary accepted rather than paying a second SHA-256 pass on
// every write).
func (s *Server) handlePutChunk(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")

	if !chunk.ValidHash(hash) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	existedBefore, err := s.chunks.Exists(hash)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBodyBytes+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > maxChunkBodyBytes {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.chunks.Write(hash, body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.metrics.chunksPut.Add(1)
	s.metrics.bytesIn.Add(int64(len(body)))

	status := "stored"
	if existedBefore {
		status = "exists"
		s.metrics.dedupeHits.Add(1)
	} else {
		s.metrics.dedupeMisses.Add(1)
	}

	writeJSON(w, http.StatusOK, putChunkResponse{Status: status, Hash: hash, Bytes: len(body)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"replicator/internal/job"
)

type createJobRequest struct {
	SrcNode  string `json:"src_node"`
	DstNode  string `json:"dst_node"`
	ObjectID string `json:"object_id"`
}

// createJobResponse is the §6 wire shape for POST /jobs/migrate: just
// enough for a caller to track the job, not the full record.
type createJobResponse struct {
	JobID  int64  `json:"job_id"`
	Status string `json:"status"`
}

// jobDTO is the full Job tuple (§3), used by GET /jobs and GET /jobs/{id}.
type jobDTO struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	SrcNode   string `json:"src_node"`
	DstNode   string `json:"dst_node"`
	ObjectID  string `json:"object_id"`
	Status    string `json:"status"`
	Retries   int    `json:"retries"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toJobDTO(j job.Job) jobDTO {
	return jobDTO{
		ID:        j.ID,
		Kind:      string(j.Kind),
		SrcNode:   j.SourceNode,
		DstNode:   j.DestNode,
		ObjectID:  j.ObjectID,
		Status:    string(j.Status),
		Retries:   j.Retries,
		LastError: j.Error,
		CreatedAt: j.CreatedAt.Format(timeLayout),
		UpdatedAt: j.UpdatedAt.Format(timeLayout),
	}
}

// handleCreateJob enqueues a migration job. The job runner (internal/runner)
// polls the same store and executes it asynchronously; this handler never
// blocks on the migration itself.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	j, err := s.jobs.Enqueue(r.Context(), job.Job{
		ObjectID:   req.ObjectID,
		SourceNode: req.SrcNode,
		DestNode:   req.DstNode,
	})
	if err != nil {
		if errors.Is(err, job.ErrInvalid) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.jobsEnqueued.Add(1)
	writeJSON(w, http.StatusCreated, createJobResponse{JobID: j.ID, Status: string(j.Status)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	j, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(j))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if limit < len(jobs) {
			jobs = jobs[:limit]
		}
	}

	dtos := make([]jobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toJobDTO(j)
	}
	writeJSON(w, http.StatusOK, dtos)
}

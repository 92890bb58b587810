package server

import (
	"fmt"
	"net/http"

	"replicator/internal/job"
)

// handleMetrics computes job/node counts live from the stores rather than
// tracking separate counters: job status changes happen inside the job
// runner, not through this server, so a local atomic counter would drift.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	nodes, err := s.nodes.List(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	byStatus := map[job.Status]int{
		job.StatusQueued:    0,
		job.StatusRunning:   0,
		job.StatusSucceeded: 0,
		job.StatusFailed:    0,
	}
	for _, j := range jobs {
		byStatus[j.Status]++
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# TYPE replicator_jobs_total counter\n")
	fmt.Fprintf(w, "replicator_jobs_total %d\n", len(jobs))
	fmt.Fprintf(w, "# TYPE replicator_jobs_by_status gauge\n")
	for _, status := range []job.Status{job.StatusQueued, job.StatusRunning, job.StatusSucceeded, job.StatusFailed} {
		fmt.Fprintf(w, "replicator_jobs_by_status{status=%q} %d\n", status, byStatus[status])
	}
	fmt.Fprintf(w, "# TYPE replicator_nodes_total gauge\n")
	fmt.Fprintf(w, "replicator_nodes_total %d\n", len(nodes))
}

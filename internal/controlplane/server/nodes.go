package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"replicator/internal/node"
)

type registerNodeRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

type nodeDTO struct {
	Name          string `json:"name"`
	BaseURL       string `json:"base_url"`
	Status        string `json:"status"`
	LastHeartbeat string `json:"last_heartbeat"`
}

func toNodeDTO(n node.Node) nodeDTO {
	return nodeDTO{Name: n.Name, BaseURL: n.BaseURL, Status: n.Status, LastHeartbeat: n.LastHeartbeat.Format(timeLayout)}
}

// registerNodeResponse is the §6 envelope for POST /nodes/register,
// grounded on original_source/api/nodes.py's {"message", "node"} shape:
// "registered" for a new name, "updated" for an existing one.
type registerNodeResponse struct {
	Message string  `json:"message"`
	Node    nodeDTO `json:"node"`
}

// handleRegisterNode upserts a node by name: a repeat registration refreshes
// base_url, status, and the heartbeat rather than failing (node.Registry
// docs).
func (s *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var req registerNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	message := "registered"
	if _, err := s.nodes.Get(r.Context(), req.Name); err == nil {
		message = "updated"
	}

	n, err := s.nodes.Register(r.Context(), node.Node{Name: req.Name, BaseURL: req.BaseURL, LastHeartbeat: now()})
	if err != nil {
		if errors.Is(err, node.ErrInvalid) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, registerNodeResponse{Message: message, Node: toNodeDTO(n)})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	n, err := s.nodes.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, node.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toNodeDTO(n))
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.nodes.List(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	dtos := make([]nodeDTO, len(nodes))
	for i, n := range nodes {
		dtos[i] = toNodeDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

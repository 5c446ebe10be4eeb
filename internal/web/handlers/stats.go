package handlers

import (
	"log"
	"net/http"

	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/store"
)

// IndexStats is implemented by repositories with an in-memory HNSW index.
type IndexStats interface {
	HNSWCount() int
}

// StatsResponse summarizes the deployment state.
type StatsResponse struct {
	InstanceID  string `json:"instance_id"`
	Enrollments int    `json:"enrollments"`
	IndexSize   int    `json:"index_size"`
	Dim         int    `json:"dim"`
	Model       string `json:"model,omitempty"`
}

// StatsHandler reports enrollment and index statistics.
type StatsHandler struct {
	enrolls    store.Reader
	index      IndexStats // nil when HNSW is disabled
	cfg        *config.Config
	instanceID string
}

// NewStatsHandler creates a new stats handler. instanceID identifies this
// server process for log correlation across restarts.
func NewStatsHandler(enrolls store.Reader, index IndexStats, cfg *config.Config, instanceID string) *StatsHandler {
	return &StatsHandler{enrolls: enrolls, index: index, cfg: cfg, instanceID: instanceID}
}

// Get handles GET /api/v1/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	count, err := h.enrolls.Count(r.Context())
	if err != nil {
		log.Printf("counting enrollments: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	resp := StatsResponse{
		InstanceID:  h.instanceID,
		Enrollments: count,
		Dim:         h.cfg.Embedding.Dim,
		Model:       h.cfg.Embedding.Model,
	}
	if h.index != nil {
		resp.IndexSize = h.index.HNSWCount()
	}
	respondJSON(w, http.StatusOK, resp)
}

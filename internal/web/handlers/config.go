package handlers

import (
	"net/http"

	"github.com/jsvoboda/face-auth/internal/config"
)

// ConfigResponse exposes the request limits and the active threshold so a
// capture UI can validate client-side before uploading.
type ConfigResponse struct {
	Threshold       float64 `json:"threshold"`
	MaxEnrollImages int     `json:"max_enroll_images"`
	MaxUploadBytes  int64   `json:"max_upload_bytes"`
	Dim             int     `json:"dim"`
}

// ConfigHandler reports the public service configuration.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Get handles GET /api/v1/config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Threshold:       h.cfg.Verify.Threshold,
		MaxEnrollImages: h.cfg.Verify.MaxEnrollImages,
		MaxUploadBytes:  h.cfg.Verify.MaxUploadBytes,
		Dim:             h.cfg.Embedding.Dim,
	})
}

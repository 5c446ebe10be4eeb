package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
)

// IdentifyMatch is one candidate identity for a probe image.
type IdentifyMatch struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name,omitempty"`
	Similarity  float64 `json:"similarity"`
}

// IdentifyResponse lists candidate identities, best first.
type IdentifyResponse struct {
	Matches []IdentifyMatch `json:"matches"`
}

// IdentifyHandler handles 1:N identification requests.
type IdentifyHandler struct {
	service *auth.Service
	cfg     *config.Config
}

// NewIdentifyHandler creates a new identification handler.
func NewIdentifyHandler(service *auth.Service, cfg *config.Config) *IdentifyHandler {
	return &IdentifyHandler{service: service, cfg: cfg}
}

// Identify handles POST /api/v1/identify. The request is a multipart form
// with one image part and optional limit and threshold fields.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.Verify.MaxUploadBytes + 1<<20); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	parsed, ok := parseThreshold(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "threshold must be a number in [0, 1]")
		return
	}
	// For identification an absent threshold and 0 mean the same thing:
	// no similarity cutoff.
	threshold := 0.0
	if parsed != nil {
		threshold = *parsed
	}

	limit := 0
	if raw := r.FormValue("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		respondError(w, http.StatusBadRequest, "exactly one image is required")
		return
	}
	image, err := readImageFile(files[0], h.cfg.Verify.MaxUploadBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.service.Identify(r.Context(), auth.IdentifyRequest{
		Image:     image,
		Limit:     limit,
		Threshold: threshold,
	})
	if err != nil {
		log.Printf("identify failed: %v", err)
		respondServiceError(w, err)
		return
	}

	resp := IdentifyResponse{Matches: make([]IdentifyMatch, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, IdentifyMatch{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Similarity:  m.Similarity,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

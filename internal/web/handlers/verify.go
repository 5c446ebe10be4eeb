package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
)

// VerifyResponse carries the raw similarity alongside the decision so the
// caller can render a confidence indicator, not just pass/fail.
type VerifyResponse struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Matched    bool    `json:"matched"`
}

// VerifyHandler handles verification requests.
type VerifyHandler struct {
	service *auth.Service
	cfg     *config.Config
}

// NewVerifyHandler creates a new verification handler.
func NewVerifyHandler(service *auth.Service, cfg *config.Config) *VerifyHandler {
	return &VerifyHandler{service: service, cfg: cfg}
}

// parseThreshold reads an optional threshold form value. Absent yields nil,
// which selects the configured default downstream; an explicit value, 0.0
// included, is passed through.
func parseThreshold(r *http.Request) (*float64, bool) {
	raw := r.FormValue("threshold")
	if raw == "" {
		return nil, true
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &threshold, true
}

// Verify handles POST /api/v1/verify. The request is a multipart form with
// a user_id field, one image part, and an optional threshold field.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.Verify.MaxUploadBytes + 1<<20); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	threshold, ok := parseThreshold(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "threshold must be a number in [0, 1]")
		return
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

	result, err := h.service.Verify(r.Context(), auth.VerifyRequest{
		UserID:    userID,
		Image:     image,
		Threshold: threshold,
	})
	if err != nil {
		log.Printf("verify failed for %s: %v", sanitizeForLog(userID), err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		UserID:     result.UserID,
		Similarity: result.Similarity,
		Threshold:  result.Threshold,
		Matched:    result.Matched,
	})
}

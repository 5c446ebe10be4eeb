package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
)

// EnrollResponse reports partial success to the caller.
type EnrollResponse struct {
	UserID          string `json:"user_id"`
	ImagesSubmitted int    `json:"images_submitted"`
	ImagesUsed      int    `json:"images_used"`
	Dim             int    `json:"dim"`
	Replaced        bool   `json:"replaced"`
}

// EnrollHandler handles user enrollment requests.
type EnrollHandler struct {
	service *auth.Service
	cfg     *config.Config
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(service *auth.Service, cfg *config.Config) *EnrollHandler {
	return &EnrollHandler{service: service, cfg: cfg}
}

// Enroll handles POST /api/v1/enroll. The request is a multipart form with
// a user_id field, an optional display_name field, and 1..N image parts
// under "images".
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	maxImages := h.cfg.Verify.MaxEnrollImages
	maxBytes := h.cfg.Verify.MaxUploadBytes

	// Bound the whole form a little above the per-image budget.
	if err := r.ParseMultipartForm(int64(maxImages)*maxBytes + 1<<20); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "at least one image is required")
		return
	}
	if len(files) > maxImages {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d images are allowed", maxImages))
		return
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readImageFile(fh, maxBytes)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, data)
	}

	result, err := h.service.Enroll(r.Context(), auth.EnrollRequest{
		UserID:      userID,
		DisplayName: r.FormValue("display_name"),
		Images:      images,
	})
	if err != nil {
		log.Printf("enroll failed for %s: %v", sanitizeForLog(userID), err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, EnrollResponse{
		UserID:          result.UserID,
		ImagesSubmitted: result.ImagesSubmitted,
		ImagesUsed:      result.ImagesUsed,
		Dim:             result.Dim,
		Replaced:        result.Replaced,
	})
}

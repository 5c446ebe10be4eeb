package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/face-auth/internal/auth"
)

// UserInfo describes one enrollment without its embedding payload.
type UserInfo struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Dim         int       `json:"dim"`
	ImagesUsed  int       `json:"images_used"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsersHandler handles enrollment listing, lookup, and deletion.
type UsersHandler struct {
	service *auth.Service
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(service *auth.Service) *UsersHandler {
	return &UsersHandler{service: service}
}

// List handles GET /api/v1/users. An optional q parameter filters by user
// ID or display name, ignoring case and diacritics.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		log.Printf("listing users: %v", err)
		respondServiceError(w, err)
		return
	}

	users := make([]UserInfo, 0, len(enrollments))
	for _, e := range enrollments {
		users = append(users, UserInfo{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Dim:         e.Dim,
			ImagesUsed:  e.ImagesUsed,
			Model:       e.Model,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

// Get handles GET /api/v1/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	enrollment, err := h.service.Info(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, UserInfo{
		UserID:      enrollment.UserID,
		DisplayName: enrollment.DisplayName,
		Dim:         enrollment.Dim,
		ImagesUsed:  enrollment.ImagesUsed,
		Model:       enrollment.Model,
		CreatedAt:   enrollment.CreatedAt,
		UpdatedAt:   enrollment.UpdatedAt,
	})
}

// Delete handles DELETE /api/v1/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID); err != nil {
		respondServiceError(w, err)
		return
	}

	log.Printf("deleted enrollment for %s", sanitizeForLog(userID))
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

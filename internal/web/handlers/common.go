package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/jsvoboda/face-auth/internal/auth"
)

// errInvalidRequestBody is a shared error message for malformed requests.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps orchestration-layer failures onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case auth.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnknownUser):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrNoUsableImage):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// readImageFile reads one uploaded image, enforcing the per-image size limit.
func readImageFile(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("image %q exceeds the %d byte limit", fh.Filename, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload %q: %w", fh.Filename, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image %q exceeds the %d byte limit", fh.Filename, maxBytes)
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jsvoboda/face-auth/internal/embedding"
	"github.com/jsvoboda/face-auth/internal/store"
)

func TestVerifyHandler(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{"probe": {1, 0}}}
	service, enrolls, cfg := newTestHandlerDeps(t, provider)
	enrolls.Add(store.Enrollment{UserID: "alice", Embedding: []float32{1, 1}, Dim: 2})
	handler := NewVerifyHandler(service, cfg)

	req := multipartRequest(t, "/api/v1/verify",
		map[string]string{"user_id": "alice"},
		map[string][][]byte{"image": {[]byte("probe")}})
	rec := httptest.NewRecorder()

	handler.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if math.Abs(resp.Similarity-math.Sqrt2/2) > 1e-6 {
		t.Errorf("similarity = %v; want %v", resp.Similarity, math.Sqrt2/2)
	}
	if resp.Threshold != 0.6 {
		t.Errorf("threshold = %v; want default 0.6", resp.Threshold)
	}
	if !resp.Matched {
		t.Error("matched = false; want true at similarity ~0.707 vs threshold 0.6")
	}
}

func TestVerifyHandlerThresholdOverride(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{"probe": {1, 0}}}
	service, enrolls, cfg := newTestHandlerDeps(t, provider)
	enrolls.Add(store.Enrollment{UserID: "alice", Embedding: []float32{1, 1}, Dim: 2})
	handler := NewVerifyHandler(service, cfg)

	req := multipartRequest(t, "/api/v1/verify",
		map[string]string{"user_id": "alice", "threshold": "0.9"},
		map[string][][]byte{"image": {[]byte("probe")}})
	rec := httptest.NewRecorder()

	handler.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Threshold != 0.9 {
		t.Errorf("threshold = %v; want 0.9", resp.Threshold)
	}
	if resp.Matched {
		t.Error("matched = true; want false at similarity ~0.707 vs threshold 0.9")
	}
}

func TestVerifyHandlerExplicitZeroThreshold(t *testing.T) {
	// threshold=0 is an explicit choice, not shorthand for the default.
	provider := &fakeProvider{vectors: map[string][]float32{"probe": {1, 0}}}
	service, enrolls, cfg := newTestHandlerDeps(t, provider)
	enrolls.Add(store.Enrollment{UserID: "alice", Embedding: []float32{0, 1}, Dim: 2})
	handler := NewVerifyHandler(service, cfg)

	req := multipartRequest(t, "/api/v1/verify",
		map[string]string{"user_id": "alice", "threshold": "0"},
		map[string][][]byte{"image": {[]byte("probe")}})
	rec := httptest.NewRecorder()

	handler.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Threshold != 0 {
		t.Errorf("threshold = %v; want explicit 0", resp.Threshold)
	}
	if !resp.Matched {
		t.Error("matched = false; want true at similarity 0 vs threshold 0")
	}
}

func TestVerifyHandlerUnknownUser(t *testing.T) {
	service, _, cfg := newTestHandlerDeps(t, &fakeProvider{})
	handler := NewVerifyHandler(service, cfg)

	req := multipartRequest(t, "/api/v1/verify",
		map[string]string{"user_id": "nobody"},
		map[string][][]byte{"image": {[]byte("probe")}})
	rec := httptest.NewRecorder()

	handler.Verify(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", rec.Code)
	}
}

func TestVerifyHandlerUnusableProbe(t *testing.T) {
	provider := &fakeProvider{errs: map[string]error{"crowd": embedding.ErrMultipleFaces}}
	service, enrolls, cfg := newTestHandlerDeps(t, provider)
	enrolls.Add(store.Enrollment{UserID: "alice", Embedding: []float32{1, 0}, Dim: 2})
	handler := NewVerifyHandler(service, cfg)

	req := multipartRequest(t, "/api/v1/verify",
		map[string]string{"user_id": "alice"},
		map[string][][]byte{"image": {[]byte("crowd")}})
	rec := httptest.NewRecorder()

	handler.Verify(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d; want 422", rec.Code)
	}
}

func TestVerifyHandlerValidation(t *testing.T) {
	service, enrolls, cfg := newTestHandlerDeps(t, &fakeProvider{})
	enrolls.Add(store.Enrollment{UserID: "alice", Embedding: []float32{1, 0}, Dim: 2})
	handler := NewVerifyHandler(service, cfg)

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][][]byte
	}{
		{"missing user_id", nil, map[string][][]byte{"image": {[]byte("probe")}}},
		{"missing image", map[string]string{"user_id": "alice"}, nil},
		{"two images", map[string]string{"user_id": "alice"},
			map[string][][]byte{"image": {[]byte("a"), []byte("b")}}},
		{"bad threshold", map[string]string{"user_id": "alice", "threshold": "high"},
			map[string][][]byte{"image": {[]byte("probe")}}},
		{"threshold out of range", map[string]string{"user_id": "alice", "threshold": "1.5"},
			map[string][][]byte{"image": {[]byte("probe")}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, "/api/v1/verify", tc.fields, tc.files)
			rec := httptest.NewRecorder()

			handler.Verify(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d; want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

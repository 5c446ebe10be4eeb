package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/face-auth/internal/store"
)

func newUsersRouter(t *testing.T, enrollments ...store.Enrollment) (*chi.Mux, *UsersHandler) {
	t.Helper()
	service, enrolls, _ := newTestHandlerDeps(t, &fakeProvider{})
	for _, e := range enrollments {
		enrolls.Add(e)
	}
	handler := NewUsersHandler(service)

	r := chi.NewRouter()
	r.Get("/users", handler.List)
	r.Get("/users/{id}", handler.Get)
	r.Delete("/users/{id}", handler.Delete)
	return r, handler
}

func TestUsersList(t *testing.T) {
	now := time.Now().UTC()
	router, _ := newUsersRouter(t,
		store.Enrollment{UserID: "alice", DisplayName: "Alice", Dim: 2, ImagesUsed: 3, CreatedAt: now, UpdatedAt: now},
		store.Enrollment{UserID: "bob", Dim: 2, ImagesUsed: 1, CreatedAt: now, UpdatedAt: now},
	)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var resp struct {
		Users []UserInfo `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Users) != 2 {
		t.Fatalf("users = %d; want 2", len(resp.Users))
	}
	if resp.Users[0].UserID != "alice" || resp.Users[1].UserID != "bob" {
		t.Errorf("users order = [%s %s]; want [alice bob]", resp.Users[0].UserID, resp.Users[1].UserID)
	}
}

func TestUsersListFilter(t *testing.T) {
	now := time.Now().UTC()
	router, _ := newUsersRouter(t,
		store.Enrollment{UserID: "jn42", DisplayName: "Jan Novák", Dim: 2, CreatedAt: now, UpdatedAt: now},
		store.Enrollment{UserID: "bob", Dim: 2, CreatedAt: now, UpdatedAt: now},
	)

	req := httptest.NewRequest(http.MethodGet, "/users?q=novak", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var resp struct {
		Users []UserInfo `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].UserID != "jn42" {
		t.Errorf("filtered users = %+v; want only jn42", resp.Users)
	}
}

func TestUsersListEmpty(t *testing.T) {
	router, _ := newUsersRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var resp struct {
		Users []UserInfo `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Users == nil {
		t.Error("users = null; want empty array")
	}
}

func TestUsersGet(t *testing.T) {
	now := time.Now().UTC()
	router, _ := newUsersRouter(t, store.Enrollment{
		UserID:     "alice",
		Embedding:  []float32{1, 0},
		Dim:        2,
		ImagesUsed: 4,
		Model:      "test-model",
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp UserInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.UserID != "alice" || resp.ImagesUsed != 4 || resp.Model != "test-model" {
		t.Errorf("response = %+v; want alice/4/test-model", resp)
	}
}

func TestUsersGetUnknown(t *testing.T) {
	router, _ := newUsersRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users/nobody", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", rec.Code)
	}
}

func TestUsersDelete(t *testing.T) {
	router, _ := newUsersRouter(t, store.Enrollment{UserID: "alice", Embedding: []float32{1, 0}, Dim: 2})

	req := httptest.NewRequest(http.MethodDelete, "/users/alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	// A second delete finds nothing.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/users/alice", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d; want 404", rec.Code)
	}
}

// Package mock provides an in-memory enrollment store for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/jsvoboda/face-auth/internal/store"
)

// EnrollmentStore is an in-memory implementation of store.Writer with
// per-method error injection.
type EnrollmentStore struct {
	mu          sync.RWMutex
	enrollments map[string]*store.Enrollment
	saves       int

	// Error injection
	GetError         error
	HasError         error
	CountError       error
	ListError        error
	SaveError        error
	DeleteError      error
	FindSimilarError error
}

// NewEnrollmentStore creates a new empty mock store.
func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{
		enrollments: make(map[string]*store.Enrollment),
	}
}

// Add seeds the store with an enrollment, bypassing Save accounting.
func (m *EnrollmentStore) Add(e store.Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[e.UserID] = &e
}

// Saves returns how many times Save has been called.
func (m *EnrollmentStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Get retrieves an enrollment or store.ErrNotFound.
func (m *EnrollmentStore) Get(ctx context.Context, userID string) (*store.Enrollment, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// Has checks whether an enrollment exists.
func (m *EnrollmentStore) Has(ctx context.Context, userID string) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.enrollments[userID]
	return ok, nil
}

// Count returns the number of enrollments.
func (m *EnrollmentStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.enrollments), nil
}

// List returns all enrollments ordered by user ID.
func (m *EnrollmentStore) List(ctx context.Context) ([]store.Enrollment, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	enrollments := make([]store.Enrollment, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		cp := *e
		cp.Embedding = nil
		enrollments = append(enrollments, cp)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].UserID < enrollments[j].UserID
	})
	return enrollments, nil
}

// Save upserts an enrollment. Like the SQL backends, a re-enrollment keeps
// the original created_at timestamp.
func (m *EnrollmentStore) Save(ctx context.Context, e *store.Enrollment) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	if prior, ok := m.enrollments[e.UserID]; ok {
		cp.CreatedAt = prior.CreatedAt
	}
	m.enrollments[e.UserID] = &cp
	m.saves++
	return nil
}

// Delete removes an enrollment or returns store.ErrNotFound.
func (m *EnrollmentStore) Delete(ctx context.Context, userID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[userID]; !ok {
		return store.ErrNotFound
	}
	delete(m.enrollments, userID)
	return nil
}

// FindSimilar ranks all enrollments by cosine distance to the query.
func (m *EnrollmentStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]store.Candidate, error) {
	if m.FindSimilarError != nil {
		return nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]store.Candidate, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		candidates = append(candidates, store.Candidate{
			Enrollment: *e,
			Distance:   store.CosineDistance(embedding, e.Embedding),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Package store defines the enrollment storage contract shared by all backends.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no enrollment exists for a user ID.
var ErrNotFound = errors.New("enrollment not found")

// Enrollment is the representative face embedding stored for one user.
type Enrollment struct {
	UserID      string
	DisplayName string
	Embedding   []float32
	Dim         int
	ImagesUsed  int
	Model       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Candidate is an enrollment paired with its cosine distance to a query vector.
type Candidate struct {
	Enrollment Enrollment
	Distance   float64
}

// Reader provides read-only access to enrollments.
type Reader interface {
	// Get retrieves the enrollment for a user ID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Enrollment, error)
	// Has checks whether an enrollment exists for the given user ID.
	Has(ctx context.Context, userID string) (bool, error)
	// Count returns the total number of enrollments.
	Count(ctx context.Context) (int, error)
	// List returns all enrollments ordered by user ID, without embeddings.
	List(ctx context.Context) ([]Enrollment, error)
	// FindSimilar returns the closest enrollments to the query embedding
	// by cosine distance, nearest first.
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]Candidate, error)
}

// Writer provides full access to enrollments.
type Writer interface {
	Reader

	// Save stores the enrollment, replacing any existing record for the
	// same user ID. Re-enrollment overwrites, it never merges.
	Save(ctx context.Context, enrollment *Enrollment) error

	// Delete removes the enrollment for a user ID. Returns ErrNotFound
	// if there was nothing to delete.
	Delete(ctx context.Context, userID string) error
}

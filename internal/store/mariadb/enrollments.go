package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jsvoboda/face-auth/internal/store"
)

// EnrollmentRepository provides MariaDB-backed enrollment storage.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new MariaDB enrollment repository.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Get retrieves the enrollment for a user ID, or store.ErrNotFound.
func (r *EnrollmentRepository) Get(ctx context.Context, userID string) (*store.Enrollment, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, embedding, dim, images_used, model, created_at, updated_at
		FROM enrollments
		WHERE user_id = ?
	`, userID)

	var e store.Enrollment
	var blob []byte
	err := row.Scan(&e.UserID, &e.DisplayName, &blob, &e.Dim, &e.ImagesUsed, &e.Model, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}

	e.Embedding, err = store.DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("decode embedding for %q: %w", userID, err)
	}
	return &e, nil
}

// Has checks whether an enrollment exists for the given user ID.
func (r *EnrollmentRepository) Has(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = ?)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return exists, nil
}

// Count returns the total number of enrollments.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// List returns all enrollments ordered by user ID, without embeddings.
func (r *EnrollmentRepository) List(ctx context.Context) ([]store.Enrollment, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT user_id, display_name, dim, images_used, model, created_at, updated_at
		FROM enrollments
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []store.Enrollment
	for rows.Next() {
		var e store.Enrollment
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Dim, &e.ImagesUsed, &e.Model, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

// Save stores the enrollment, overwriting any prior record for the user.
func (r *EnrollmentRepository) Save(ctx context.Context, e *store.Enrollment) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, display_name, embedding, dim, images_used, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			display_name = VALUES(display_name),
			embedding    = VALUES(embedding),
			dim          = VALUES(dim),
			images_used  = VALUES(images_used),
			model        = VALUES(model),
			updated_at   = VALUES(updated_at)
	`, e.UserID, e.DisplayName, store.EncodeVector(e.Embedding), e.Dim, e.ImagesUsed, e.Model, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	return nil
}

// Delete removes the enrollment for a user ID.
func (r *EnrollmentRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM enrollments WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindSimilar scans all enrollments and ranks them by cosine distance.
func (r *EnrollmentRepository) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]store.Candidate, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT user_id, display_name, embedding, dim, images_used, model, created_at, updated_at
		FROM enrollments
	`)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var candidates []store.Candidate
	for rows.Next() {
		var e store.Enrollment
		var blob []byte
		if err := rows.Scan(&e.UserID, &e.DisplayName, &blob, &e.Dim, &e.ImagesUsed, &e.Model, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.Embedding, err = store.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %q: %w", e.UserID, err)
		}
		candidates = append(candidates, store.Candidate{
			Enrollment: e,
			Distance:   store.CosineDistance(embedding, e.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

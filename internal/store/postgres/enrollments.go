package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/jsvoboda/face-auth/internal/store"
)

// EnrollmentRepository provides PostgreSQL-backed enrollment storage with an
// optional in-memory HNSW index accelerating 1:N search.
type EnrollmentRepository struct {
	pool        *Pool
	hnswIndex   *store.HNSWIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

const enrollmentColumns = "user_id, display_name, embedding, dim, images_used, model, created_at, updated_at"

func scanEnrollment(row *sql.Row) (*store.Enrollment, error) {
	var e store.Enrollment
	var vec pgvector.Vector

	err := row.Scan(&e.UserID, &e.DisplayName, &vec, &e.Dim, &e.ImagesUsed, &e.Model, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}

	e.Embedding = vec.Slice()
	return &e, nil
}

// Get retrieves the enrollment for a user ID, or store.ErrNotFound.
func (r *EnrollmentRepository) Get(ctx context.Context, userID string) (*store.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE user_id = $1", enrollmentColumns)
	return scanEnrollment(r.pool.QueryRow(ctx, query, userID))
}

// Has checks whether an enrollment exists for the given user ID.
func (r *EnrollmentRepository) Has(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return exists, nil
}

// Count returns the total number of enrollments.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// List returns all enrollments ordered by user ID, without embeddings.
func (r *EnrollmentRepository) List(ctx context.Context) ([]store.Enrollment, error) {
	rows, err := r.pool.Query(ctx, `
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
// The upsert is a single statement, so concurrent saves for the same user
// resolve to last-writer-wins under the database's write serialization.
func (r *EnrollmentRepository) Save(ctx context.Context, e *store.Enrollment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrollments (user_id, display_name, embedding, dim, images_used, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			embedding    = EXCLUDED.embedding,
			dim          = EXCLUDED.dim,
			images_used  = EXCLUDED.images_used,
			model        = EXCLUDED.model,
			updated_at   = EXCLUDED.updated_at
	`, e.UserID, e.DisplayName, pgvector.NewVector(e.Embedding), e.Dim, e.ImagesUsed, e.Model, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Add(e)
	}
	r.hnswMu.RUnlock()

	return nil
}

// Delete removes the enrollment for a user ID.
func (r *EnrollmentRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM enrollments WHERE user_id = $1", userID)
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

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Delete(userID)
	}
	r.hnswMu.RUnlock()

	return nil
}

// FindSimilar returns the closest enrollments by cosine distance, nearest
// first. Uses the in-memory HNSW index if enabled, otherwise pgvector.
func (r *EnrollmentRepository) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]store.Candidate, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarHNSW(embedding, limit)
	}
	return r.findSimilarPostgres(ctx, embedding, limit)
}

func (r *EnrollmentRepository) findSimilarHNSW(embedding []float32, limit int) ([]store.Candidate, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	ids, distances, err := r.hnswIndex.Search(embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("HNSW search: %w", err)
	}

	candidates := make([]store.Candidate, 0, len(ids))
	for i, id := range ids {
		if e := r.hnswIndex.Get(id); e != nil {
			candidates = append(candidates, store.Candidate{Enrollment: *e, Distance: distances[i]})
		}
	}
	return candidates, nil
}

func (r *EnrollmentRepository) findSimilarPostgres(ctx context.Context, embedding []float32, limit int) ([]store.Candidate, error) {
	query := fmt.Sprintf(`
		SELECT %s, embedding <=> $1 AS distance
		FROM enrollments
		ORDER BY distance
		LIMIT $2
	`, enrollmentColumns)

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var candidates []store.Candidate
	for rows.Next() {
		var c store.Candidate
		var vec pgvector.Vector
		err := rows.Scan(
			&c.Enrollment.UserID, &c.Enrollment.DisplayName, &vec, &c.Enrollment.Dim,
			&c.Enrollment.ImagesUsed, &c.Enrollment.Model, &c.Enrollment.CreatedAt,
			&c.Enrollment.UpdatedAt, &c.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Enrollment.Embedding = vec.Slice()
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// EnableHNSW builds (or loads from indexPath) the in-memory HNSW index over
// all stored enrollments. Pass an empty path for an in-memory-only index.
func (r *EnrollmentRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	index := store.NewHNSWIndex()

	enrollments, err := r.loadAllWithEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("loading enrollments for HNSW: %w", err)
	}

	if indexPath != "" {
		if err := index.Load(indexPath); err != nil {
			return fmt.Errorf("loading HNSW index: %w", err)
		}
		// Saved graphs can be stale; rebuild when the counts disagree.
		if meta, err := store.LoadMetadata(indexPath); err != nil || meta.EnrollmentCount != len(enrollments) || index.IsEmpty() {
			if err := index.BuildFromEnrollments(enrollments); err != nil {
				return fmt.Errorf("building HNSW index: %w", err)
			}
		} else {
			index.RebuildFromEnrollments(enrollments)
		}
		index.SetPath(indexPath)
	} else {
		if err := index.BuildFromEnrollments(enrollments); err != nil {
			return fmt.Errorf("building HNSW index: %w", err)
		}
	}

	r.hnswMu.Lock()
	r.hnswIndex = index
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// HNSWCount returns the number of entries in the HNSW index.
func (r *EnrollmentRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// SaveHNSWIndex persists the HNSW index to disk (if a path is configured).
func (r *EnrollmentRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return nil
	}
	return r.hnswIndex.Save()
}

// loadAllWithEmbeddings fetches every enrollment including its embedding.
func (r *EnrollmentRepository) loadAllWithEmbeddings(ctx context.Context) ([]store.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments ORDER BY user_id", enrollmentColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []store.Enrollment
	for rows.Next() {
		var e store.Enrollment
		var vec pgvector.Vector
		if err := rows.Scan(&e.UserID, &e.DisplayName, &vec, &e.Dim, &e.ImagesUsed, &e.Model, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.Embedding = vec.Slice()
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

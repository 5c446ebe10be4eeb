//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/store"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

// testEmbedding returns a 512-d vector with most of its weight on the given
// axis, so different axes are far apart in cosine distance.
func testEmbedding(axis int) []float32 {
	v := make([]float32, 512)
	for i := range v {
		v[i] = 0.01
	}
	v[axis] = 1
	return v
}

func testEnrollment(userID string, axis int) *store.Enrollment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &store.Enrollment{
		UserID:     userID,
		Embedding:  testEmbedding(axis),
		Dim:        512,
		ImagesUsed: 2,
		Model:      "buffalo_l",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestEnrollmentRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEnrollmentRepository(pool)

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.Save(ctx, testEnrollment("alice", 0)); err != nil {
			t.Fatalf("Failed to save enrollment: %v", err)
		}

		got, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Failed to get enrollment: %v", err)
		}
		if got.UserID != "alice" || got.Dim != 512 || got.ImagesUsed != 2 {
			t.Errorf("Got %+v; want alice/512/2", got)
		}
		if len(got.Embedding) != 512 {
			t.Fatalf("Embedding length = %d; want 512", len(got.Embedding))
		}
		if got.Embedding[0] != 1 {
			t.Errorf("Embedding[0] = %v; want 1", got.Embedding[0])
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, "nobody")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get() error = %v; want store.ErrNotFound", err)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		e := testEnrollment("bob", 1)
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Failed to save enrollment: %v", err)
		}

		e2 := testEnrollment("bob", 2)
		e2.DisplayName = "Bob"
		e2.ImagesUsed = 5
		if err := repo.Save(ctx, e2); err != nil {
			t.Fatalf("Failed to overwrite enrollment: %v", err)
		}

		got, err := repo.Get(ctx, "bob")
		if err != nil {
			t.Fatalf("Failed to get enrollment: %v", err)
		}
		if got.DisplayName != "Bob" || got.ImagesUsed != 5 {
			t.Errorf("Got %+v; want overwritten record", got)
		}
		if got.Embedding[2] != 1 {
			t.Errorf("Embedding[2] = %v; want 1 (new vector)", got.Embedding[2])
		}

		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 2 {
			t.Errorf("Count = %d; want 2 (overwrite, not insert)", count)
		}
	})

	t.Run("HasAndList", func(t *testing.T) {
		has, err := repo.Has(ctx, "alice")
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if !has {
			t.Error("Has(alice) = false; want true")
		}

		enrollments, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(enrollments) != 2 {
			t.Fatalf("List() returned %d; want 2", len(enrollments))
		}
		if enrollments[0].UserID != "alice" || enrollments[1].UserID != "bob" {
			t.Errorf("List() order = [%s %s]; want [alice bob]", enrollments[0].UserID, enrollments[1].UserID)
		}
		if enrollments[0].Embedding != nil {
			t.Error("List() includes embeddings; want metadata only")
		}
	})

	t.Run("FindSimilarPgvector", func(t *testing.T) {
		candidates, err := repo.FindSimilar(ctx, testEmbedding(0), 2)
		if err != nil {
			t.Fatalf("FindSimilar() error: %v", err)
		}
		if len(candidates) != 2 {
			t.Fatalf("FindSimilar() returned %d; want 2", len(candidates))
		}
		if candidates[0].Enrollment.UserID != "alice" {
			t.Errorf("Nearest = %s; want alice", candidates[0].Enrollment.UserID)
		}
		if candidates[0].Distance > candidates[1].Distance {
			t.Errorf("Distances not ascending: %v > %v", candidates[0].Distance, candidates[1].Distance)
		}
	})

	t.Run("FindSimilarHNSW", func(t *testing.T) {
		indexPath := filepath.Join(t.TempDir(), "enrollments.hnsw")
		if err := repo.EnableHNSW(ctx, indexPath); err != nil {
			t.Fatalf("EnableHNSW() error: %v", err)
		}
		if repo.HNSWCount() != 2 {
			t.Errorf("HNSWCount() = %d; want 2", repo.HNSWCount())
		}

		candidates, err := repo.FindSimilar(ctx, testEmbedding(0), 2)
		if err != nil {
			t.Fatalf("FindSimilar() error: %v", err)
		}
		if len(candidates) != 2 || candidates[0].Enrollment.UserID != "alice" {
			t.Errorf("HNSW FindSimilar() = %+v; want alice first", candidates)
		}

		if err := repo.SaveHNSWIndex(); err != nil {
			t.Fatalf("SaveHNSWIndex() error: %v", err)
		}
		meta, err := store.LoadMetadata(indexPath)
		if err != nil {
			t.Fatalf("LoadMetadata() error: %v", err)
		}
		if meta.EnrollmentCount != 2 {
			t.Errorf("Saved metadata count = %d; want 2", meta.EnrollmentCount)
		}
	})

	t.Run("SaveUpdatesHNSW", func(t *testing.T) {
		if err := repo.Save(ctx, testEnrollment("carol", 3)); err != nil {
			t.Fatalf("Failed to save enrollment: %v", err)
		}
		if repo.HNSWCount() != 3 {
			t.Errorf("HNSWCount() after save = %d; want 3", repo.HNSWCount())
		}

		candidates, err := repo.FindSimilar(ctx, testEmbedding(3), 1)
		if err != nil {
			t.Fatalf("FindSimilar() error: %v", err)
		}
		if len(candidates) != 1 || candidates[0].Enrollment.UserID != "carol" {
			t.Errorf("FindSimilar() = %+v; want carol", candidates)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "carol"); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if err := repo.Delete(ctx, "carol"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("second Delete() error = %v; want store.ErrNotFound", err)
		}
		if repo.HNSWCount() != 2 {
			t.Errorf("HNSWCount() after delete = %d; want 2", repo.HNSWCount())
		}
	})
}

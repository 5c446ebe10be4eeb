package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/embedding"
	"github.com/jsvoboda/face-auth/internal/store"
	"github.com/jsvoboda/face-auth/internal/store/mariadb"
	"github.com/jsvoboda/face-auth/internal/store/postgres"
)

// backend bundles everything a command needs to run orchestrations.
type backend struct {
	service *auth.Service
	enrolls store.Writer
	pgRepo  *postgres.EnrollmentRepository // nil on the MariaDB backend
	close   func()
}

// openStore connects to the configured enrollment store. PostgreSQL wins
// when both DATABASE_URL and MARIADB_DSN are set.
func openStore(cfg *config.Config) (store.Writer, *postgres.EnrollmentRepository, func(), error) {
	switch {
	case cfg.Database.URL != "":
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		repo := postgres.NewEnrollmentRepository(pool)
		return repo, repo, func() { pool.Close() }, nil

	case cfg.Database.MariaDBDSN != "":
		fmt.Printf("Connecting to MariaDB database...\n")
		pool, err := mariadb.NewPool(cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		if err := pool.Migrate(context.Background()); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to run MariaDB migrations: %w", err)
		}
		repo := mariadb.NewEnrollmentRepository(pool)
		return repo, nil, func() { pool.Close() }, nil

	default:
		return nil, nil, nil, errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
	}
}

// newBackend builds the provider, store, and orchestration service.
func newBackend(cfg *config.Config) (*backend, error) {
	enrolls, pgRepo, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	client := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.MaxEdge)
	service := auth.NewService(client, enrolls, auth.Options{
		DefaultThreshold: cfg.Verify.Threshold,
		MaxEnrollImages:  cfg.Verify.MaxEnrollImages,
		Dim:              cfg.Embedding.Dim,
		Model:            client.Model(),
	})

	return &backend{
		service: service,
		enrolls: enrolls,
		pgRepo:  pgRepo,
		close:   closeStore,
	}, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/store/postgres"
	"github.com/jsvoboda/face-auth/internal/web"
	"github.com/jsvoboda/face-auth/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the face authentication web server.
The server exposes a REST API for enrolling users from face images,
verifying a probe image against a stored enrollment, and identifying
an unknown face across all enrolled users.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// initHNSW builds or loads the enrollment HNSW index for fast identification.
func initHNSW(ctx context.Context, repo *postgres.EnrollmentRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading enrollment HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for identification...\n")
	}
	if err := repo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build enrollment HNSW index: %v\n", err)
		fmt.Printf("Identification will use PostgreSQL pgvector queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("Enrollment HNSW index ready with %d users (persisted to %s)\n", repo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("Enrollment HNSW index built with %d users (in-memory only)\n", repo.HNSWCount())
	}
}

// resolveServeHostPort resolves port and host. Explicit flags win over the
// WEB_PORT / WEB_HOST environment variables read by config.Load.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := cfg.Web.Port
	host := cfg.Web.Host

	if cmd.Flags().Changed("port") || port == 0 {
		port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") || host == "" {
		host = mustGetString(cmd, "host")
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var index handlers.IndexStats
	if b.pgRepo != nil {
		initHNSW(context.Background(), b.pgRepo, cfg.Database.HNSWPath)
		index = b.pgRepo
	}

	port, host := resolveServeHostPort(cmd, cfg)
	cfg.Web.Port = port
	cfg.Web.Host = host

	server := web.NewServer(cfg, b.service, b.enrolls, index)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if b.pgRepo != nil {
			if err := b.pgRepo.SaveHNSWIndex(); err != nil {
				fmt.Printf("Warning: failed to save enrollment HNSW index: %v\n", err)
			} else if cfg.Database.HNSWPath != "" {
				fmt.Println("Enrollment HNSW index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting face-auth API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

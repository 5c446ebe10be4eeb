package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Batch-enroll users from a directory tree",
	Long: `Batch-enroll users from a directory tree.

Each immediate subdirectory of <directory> is treated as one user: the
subdirectory name becomes the user ID and every supported image inside it
(up to the enrollment limit) contributes to that user's stored vector.

  people/
    john-doe/
      front.jpg
      left.jpg
    jane-roe/
      photo.png

Users that fail to enroll (for example because no face was found in any of
their images) are reported at the end; the rest are enrolled normally.

Examples:
  # Enroll everyone under people/
  face-auth import people/

  # Process four users in parallel
  face-auth import people/ --concurrency 4`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int("concurrency", 2, "Number of users enrolled in parallel")
	importCmd.Flags().Bool("dry-run", false, "List what would be enrolled without calling the backend")
}

// importUser is one subdirectory worth of enrollment input.
type importUser struct {
	userID string
	paths  []string
}

func collectImportUsers(root string, maxImages int) ([]importUser, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var users []importUser
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}

		var paths []string
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(f.Name())) {
			case ".jpg", ".jpeg", ".png":
				paths = append(paths, filepath.Join(dir, f.Name()))
			}
		}
		if len(paths) == 0 {
			continue
		}
		sort.Strings(paths)
		if len(paths) > maxImages {
			paths = paths[:maxImages]
		}
		users = append(users, importUser{userID: entry.Name(), paths: paths})
	}
	return users, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	concurrency := mustGetInt(cmd, "concurrency")
	dryRun := mustGetBool(cmd, "dry-run")

	users, err := collectImportUsers(args[0], cfg.Verify.MaxEnrollImages)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return errors.New("no user subdirectories with images found")
	}

	if dryRun {
		for _, u := range users {
			fmt.Printf("%s: %d images\n", u.userID, len(u.paths))
		}
		fmt.Printf("\nWould enroll %d users\n", len(users))
		return nil
	}

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	fmt.Printf("Enrolling %d users from %s\n\n", len(users), args[0])
	bar := progressbar.NewOptions(len(users),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("users"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled int64
	var mu sync.Mutex
	var failures []string

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, u := range users {
		wg.Add(1)
		go func(u importUser) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importOne(b, u); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", u.userID, err))
				mu.Unlock()
			} else {
				atomic.AddInt64(&enrolled, 1)
			}

			bar.Add(1)
		}(u)
	}

	wg.Wait()
	fmt.Println()

	fmt.Printf("\nEnrolled %d/%d users\n", enrolled, len(users))
	if len(failures) > 0 {
		sort.Strings(failures)
		fmt.Printf("Failed:\n")
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
		return fmt.Errorf("%d users failed to enroll", len(failures))
	}
	return nil
}

func importOne(b *backend, u importUser) error {
	images, err := readImageFiles(u.paths)
	if err != nil {
		return err
	}
	_, err = b.service.Enroll(context.Background(), auth.EnrollRequest{
		UserID: u.userID,
		Images: images,
	})
	return err
}

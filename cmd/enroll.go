package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/embedding"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-id> <image>...",
	Short: "Enroll a user from one or more face images",
	Long: `Enroll a user from one or more face images.

Each image is embedded by the face embedding service; images where no face
(or more than one face) is detected are skipped. The remaining embeddings
are averaged into a single representative vector and stored under the user
ID. Enrolling an existing user replaces the stored vector.

Examples:
  # Enroll from a single photo
  face-auth enroll john-doe john.jpg

  # Enroll from several photos for a more robust template
  face-auth enroll john-doe front.jpg left.jpg right.jpg

  # Attach a human-readable name
  face-auth enroll john-doe john.jpg --name "John Doe"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Display name stored with the enrollment")
}

// readImageFiles loads image files from disk, rejecting unsupported formats
// before any network round-trip.
func readImageFiles(paths []string) ([][]byte, error) {
	images := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if !embedding.IsSupportedImage(data) {
			return nil, fmt.Errorf("%s: unsupported image format (want JPEG, PNG, or WebP)", filepath.Base(path))
		}
		images = append(images, data)
	}
	return images, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	userID := args[0]
	name := mustGetString(cmd, "name")

	images, err := readImageFiles(args[1:])
	if err != nil {
		return err
	}
	if len(images) > cfg.Verify.MaxEnrollImages {
		return fmt.Errorf("too many images: %d (maximum %d)", len(images), cfg.Verify.MaxEnrollImages)
	}

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	result, err := b.service.Enroll(context.Background(), auth.EnrollRequest{
		UserID:      userID,
		DisplayName: name,
		Images:      images,
	})
	if err != nil {
		return err
	}

	verb := "Enrolled"
	if result.Replaced {
		verb = "Re-enrolled"
	}
	fmt.Printf("%s %s using %d/%d images (dim %d)\n",
		verb, result.UserID, result.ImagesUsed, result.ImagesSubmitted, result.Dim)
	if result.ImagesUsed < result.ImagesSubmitted {
		fmt.Printf("Skipped %d images with no usable face\n", result.ImagesSubmitted-result.ImagesUsed)
	}
	return nil
}

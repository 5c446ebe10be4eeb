package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <user-id> <image>",
	Short: "Verify a probe image against a stored enrollment",
	Long: `Verify a probe image against the stored enrollment for a claimed identity.

The probe image must contain exactly one face. The command prints the cosine
similarity between the probe embedding and the stored vector, the threshold
applied, and the match decision. The exit code is 0 on a match and 1 on a
mismatch, so the command can be used in scripts.

Examples:
  # Verify against the configured threshold
  face-auth verify john-doe probe.jpg

  # Tighten the threshold for this one check
  face-auth verify john-doe probe.jpg --threshold 0.7

  # Machine-readable output
  face-auth verify john-doe probe.jpg --json`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Similarity threshold override (omit to use the configured threshold)")
	verifyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	userID := args[0]
	asJSON := mustGetBool(cmd, "json")

	// Only an explicitly set flag overrides the configured threshold, so
	// --threshold 0 means exactly 0 rather than the default.
	var threshold *float64
	if cmd.Flags().Changed("threshold") {
		v := mustGetFloat64(cmd, "threshold")
		threshold = &v
	}

	images, err := readImageFiles(args[1:])
	if err != nil {
		return err
	}

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	result, err := b.service.Verify(context.Background(), auth.VerifyRequest{
		UserID:    userID,
		Image:     images[0],
		Threshold: threshold,
	})
	if err != nil {
		return err
	}

	if asJSON {
		out := struct {
			UserID     string  `json:"user_id"`
			Similarity float64 `json:"similarity"`
			Threshold  float64 `json:"threshold"`
			Matched    bool    `json:"matched"`
		}{result.UserID, result.Similarity, result.Threshold, result.Matched}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else if result.Matched {
		fmt.Printf("MATCH    %s (similarity %.4f >= threshold %.2f)\n", result.UserID, result.Similarity, result.Threshold)
	} else {
		fmt.Printf("NO MATCH %s (similarity %.4f < threshold %.2f)\n", result.UserID, result.Similarity, result.Threshold)
	}

	if !result.Matched {
		os.Exit(1)
	}
	return nil
}

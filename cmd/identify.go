package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify an unknown face across all enrolled users",
	Long: `Identify an unknown face by ranking all enrolled users by similarity.

The probe image must contain exactly one face. Candidates are printed best
first. With --threshold only candidates at or above the cutoff are shown.

Examples:
  # Top 5 candidates
  face-auth identify probe.jpg

  # Top 10 candidates at or above similarity 0.5
  face-auth identify probe.jpg --limit 10 --threshold 0.5

  # Output as JSON
  face-auth identify probe.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Int("limit", 5, "Maximum number of candidates")
	identifyCmd.Flags().Float64("threshold", 0, "Minimum similarity cutoff (0 = no cutoff)")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	asJSON := mustGetBool(cmd, "json")

	images, err := readImageFiles(args)
	if err != nil {
		return err
	}

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	matches, err := b.service.Identify(context.Background(), auth.IdentifyRequest{
		Image:     images[0],
		Limit:     mustGetInt(cmd, "limit"),
		Threshold: mustGetFloat64(cmd, "threshold"),
	})
	if err != nil {
		return err
	}

	if asJSON {
		type match struct {
			UserID      string  `json:"user_id"`
			DisplayName string  `json:"display_name,omitempty"`
			Similarity  float64 `json:"similarity"`
		}
		out := make([]match, 0, len(matches))
		for _, m := range matches {
			out = append(out, match{m.UserID, m.DisplayName, m.Similarity})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding matches: %w", err)
		}
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No candidates found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tSIMILARITY")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%.4f\n", m.UserID, m.DisplayName, m.Similarity)
	}
	return w.Flush()
}

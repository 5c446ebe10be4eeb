package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Enrolled user operations",
	Long:  `Commands for listing, inspecting, and removing enrolled users.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled users",
	RunE:  runUsersList,
}

var usersInfoCmd = &cobra.Command{
	Use:   "info <user-id>",
	Short: "Display enrollment metadata for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersInfo,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Remove a user's enrollment",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersInfoCmd)
	usersCmd.AddCommand(usersDeleteCmd)

	usersListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	enrollments, err := b.service.List(context.Background())
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		type user struct {
			UserID      string    `json:"user_id"`
			DisplayName string    `json:"display_name,omitempty"`
			ImagesUsed  int       `json:"images_used"`
			Model       string    `json:"model"`
			UpdatedAt   time.Time `json:"updated_at"`
		}
		out := make([]user, 0, len(enrollments))
		for _, e := range enrollments {
			out = append(out, user{e.UserID, e.DisplayName, e.ImagesUsed, e.Model, e.UpdatedAt})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(enrollments) == 0 {
		fmt.Println("No enrolled users")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tIMAGES\tMODEL\tUPDATED")
	for _, e := range enrollments {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e.UserID, e.DisplayName, e.ImagesUsed, e.Model, e.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runUsersInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	e, err := b.service.Info(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("User:        %s\n", e.UserID)
	if e.DisplayName != "" {
		fmt.Printf("Name:        %s\n", e.DisplayName)
	}
	fmt.Printf("Dimension:   %d\n", e.Dim)
	fmt.Printf("Images used: %d\n", e.ImagesUsed)
	fmt.Printf("Model:       %s\n", e.Model)
	fmt.Printf("Enrolled:    %s\n", e.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:     %s\n", e.UpdatedAt.Format(time.RFC3339))
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.service.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted enrollment for %s\n", args[0])
	return nil
}

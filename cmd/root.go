package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-auth",
	Short: "Face enrollment and verification service",
	Long: `Face Auth is a backend service that enrolls users from face photos and
verifies fresh captures against their stored embedding. Face detection and
embedding are delegated to an external embedding server; enrollments live
in PostgreSQL (pgvector) or MariaDB.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

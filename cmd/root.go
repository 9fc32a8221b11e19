package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "derm-match",
	Short: "Facial similarity matching for clinical case photos",
	Long: `Derm Match analyzes facial photographs and retrieves the most similar
cases from a reference corpus. A query image passes a quality gate and face
localization with a cloud fallback, gets embedded by an external model, and
is matched against an in-memory similarity index with optional demographic
ranking hints.`,
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

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sylva",
	Short: "Sylva is the forestry management backend",
	Long: `The Sylva server handles authentication, work-site planning and time
tracking for forestry crews. Sessions are cookie-bound opaque tokens;
only a one-way digest of each token is ever persisted.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdelmas/sylva/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired session rows once and exit",
	Long: `Removes persisted sessions whose expiry has passed. The server does
this lazily on lookup and periodically in the background; sweep exists
for cron-style hygiene on deployments that run without the built-in
sweeper.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		sessStore, _, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		n, err := sessStore.DeleteExpired(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired sessions\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

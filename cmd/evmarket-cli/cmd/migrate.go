package cmd

import (
	"context"
	"fmt"

	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/database"
	"github.com/nfrund/evmarket/internal/logging"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the chat tables",
	Long: `Connect to the database configured by DB_DRIVER and DB_DSN and create or
update the conversations and messages tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		logging.New(cfg.GetLogFormat(), cfg.GetLogLevel())

		ctx := context.Background()
		db, err := database.NewDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

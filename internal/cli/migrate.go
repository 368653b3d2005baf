package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/riskpipeline/internal/storage/postgres"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <postgres-url>",
		Short: "Apply database migrations and print their status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !postgres.IsDSN(args[0]) {
				return fmt.Errorf("migrate needs a postgres:// URL, got %q", args[0])
			}
			db, err := postgres.Connect(ctx, args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			a.log.Info("migrations applied", zap.String("component", "migrate"))

			lines, err := db.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/riskpipeline/internal/pipeline"
)

func newSummaryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <store>",
		Short: "Print headline figures for the stored user_behavior table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := pipeline.OpenStore(ctx, a.cfg.DataDir, args[0], a.cfg.CopyBatchSize, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Summary(ctx)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", store, err)
			}
			out := cmd.OutOrStdout()
			if err := s.Write(out); err != nil {
				return err
			}

			last, ok, err := store.LastRun(ctx)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "\nlast run %s at %s (read %d, valid %d, rejected %d)\n",
					last.ID, last.StartedAt.Format(time.RFC3339), last.Read, last.Valid, last.Rejected)
			}
			return nil
		},
	}
}

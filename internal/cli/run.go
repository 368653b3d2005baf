package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/riskpipeline/internal/domain"
	"example.com/riskpipeline/internal/metrics"
	"example.com/riskpipeline/internal/pipeline"
	"example.com/riskpipeline/internal/tracing"
)

// maxLoggedRejections caps the sample of bad records written to the log.
const maxLoggedRejections = 10

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <input> <store>",
		Short: "Process an event log and replace the user_behavior table",
		Long: `Reads raw events from <input>, drops records that fail validation, derives
behavior features, flags high-risk events and overwrites user_behavior in <store>.

<store> is a postgres:// URL or a file path. File paths must be inside the data
directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], args[1])
		},
	}
}

func (a *app) run(cmd *cobra.Command, input, target string) error {
	ctx := cmd.Context()

	shutdown, err := tracing.Init(ctx, a.cfg.OTLPEndpoint, a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	// Reject an escaping store path up front; opening waits for a valid batch.
	name, err := pipeline.ResolveTarget(a.cfg.DataDir, target)
	if err != nil {
		return err
	}
	var store *pipeline.Store
	defer func() {
		if store != nil {
			store.Close()
		}
	}()
	open := func(ctx context.Context) (pipeline.Sink, error) {
		s, err := pipeline.OpenStore(ctx, a.cfg.DataDir, target, a.cfg.CopyBatchSize, a.log)
		if err != nil {
			return nil, err
		}
		store = s
		return s, nil
	}

	rec := metrics.New()
	p := pipeline.NewDeferred(name, open, pipeline.Options{
		DataDir:      a.cfg.DataDir,
		StoreTimeout: a.cfg.StoreTimeout,
		Log:          a.log,
		Metrics:      rec,
	})
	res, runErr := p.Run(ctx, input)

	logRejections(a.log, res.Rejections)
	if err := rec.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.log.Warn("write metrics textfile", zap.String("path", a.cfg.MetricsTextfile), zap.Error(err))
	}
	if runErr != nil {
		a.log.Error("run failed", zap.String("run_id", res.RunID), zap.Error(runErr))
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", res.RunID)
	fmt.Fprintf(out, "  read %d, valid %d, rejected %d\n", res.Read, res.Valid, res.Rejected)
	fmt.Fprintf(out, "  high risk %d\n", res.HighRisk)
	fmt.Fprintf(out, "  store %s\n", res.Store)
	fmt.Fprintf(out, "  digest %s\n", res.Digest)
	return nil
}

func logRejections(log *zap.Logger, rejections []domain.Rejection) {
	for i, rej := range rejections {
		if i == maxLoggedRejections {
			log.Warn("more rejected records not shown", zap.Int("remaining", len(rejections)-i))
			return
		}
		log.Warn("record rejected",
			zap.Int("index", rej.Index),
			zap.String("user_id", rej.UserID),
			zap.Any("errors", rej.Errors),
		)
	}
}

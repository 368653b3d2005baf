// Package cli wires the riskpipeline command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/riskpipeline/internal/config"
	"example.com/riskpipeline/internal/logging"
)

// app carries state shared by subcommands once the root pre-run has loaded
// configuration.
type app struct {
	configPath string
	dataDir    string
	logLevel   string
	logFormat  string

	cfg config.Config
	log *zap.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{log: zap.NewNop()}

	root := &cobra.Command{
		Use:               "riskpipeline",
		Short:             "Validate e-commerce event logs, derive behavior features and flag risky activity",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.log.Sync() },
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "optional YAML config file")
	f.StringVar(&a.dataDir, "data-dir", "", "directory all input and output paths must stay inside (env DATA_DIR)")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	f.StringVar(&a.logFormat, "log-format", "", "console or json (env LOG_FORMAT)")

	root.AddCommand(
		newRunCommand(a),
		newSummaryCommand(a),
		newMigrateCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.cfg = cfg
	a.log = logger
	return nil
}

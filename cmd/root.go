package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/examintel/internal/config"
	"github.com/okian/examintel/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "examintel",
		Short:         "Study plans from self-assessments and past exam papers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to a YAML config file (overrides EXAMINTEL_CONFIG)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newLoadgenCmd())
	return root
}

// setup loads configuration and initializes logging on the command's
// stderr so stdout stays free for command output.
func setup(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(cmd.Context(), path)
	} else {
		cfg, err = config.Load(cmd.Context())
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

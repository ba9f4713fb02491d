package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/examintel/internal/loadgen"
)

const defaultLoadDeadline = 10 * time.Minute

func newLoadgenCmd() *cobra.Command {
	def := loadgen.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Submit synthetic assessments to a running service as plan jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := setup(cmd); err != nil {
				return err
			}
			cfg := loadgen.DefaultConfig()
			f := cmd.Flags()
			cfg.BaseURL, _ = f.GetString("url")
			cfg.Assessments, _ = f.GetInt("assessments")
			cfg.Workers, _ = f.GetInt("workers")
			cfg.Timeout, _ = f.GetDuration("timeout")
			cfg.VerifySample, _ = f.GetInt("verify")
			cfg.WaitTimeout, _ = f.GetDuration("wait")
			cfg.Seed, _ = f.GetUint64("seed")
			total, _ := f.GetDuration("deadline")

			ctx, cancel := context.WithTimeout(cmd.Context(), total)
			defer cancel()
			stats, err := loadgen.Run(ctx, cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"submitted=%d accepted=%d duplicate=%d rejected=%d failed=%d verified=%d missing=%d duration=%s success=%.1f%%\n",
				stats.Submitted, stats.Accepted, stats.Duplicate, stats.Rejected, stats.Failed,
				stats.Verified, stats.Missing, stats.Duration, stats.SuccessRate())
			return err
		},
	}
	f := cmd.Flags()
	f.String("url", def.BaseURL, "Base URL of the service")
	f.Int("assessments", def.Assessments, "Number of assessments to submit")
	f.Int("workers", def.Workers, "Concurrent submitters")
	f.Duration("timeout", def.Timeout, "Per-request timeout")
	f.Int("verify", def.VerifySample, "Accepted jobs whose plans are awaited")
	f.Duration("wait", def.WaitTimeout, "How long to wait for sampled plans")
	f.Uint64("seed", def.Seed, "Generator seed")
	f.Duration("deadline", defaultLoadDeadline, "Overall run deadline")
	return cmd
}

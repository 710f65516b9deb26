package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ecommerce-analytics/internal/loader"
)

type DiagnoseCmd struct{}

func NewDiagnoseCmd() *DiagnoseCmd {
	return &DiagnoseCmd{}
}

func (c *DiagnoseCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Load the source tables and print shape, null and duplicate diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			src, err := loader.Open(ctx, cfg.Source.Kind, cfg.Source.Dir, cfg.Source.DSN, loader.DefaultTables())
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer src.Close()

			raw, err := loader.LoadAll(ctx, src, loader.DefaultTables(), logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			PrintTableDiagnostics(out, raw.Diagnostics())

			_, stats, err := loader.Decode(raw)
			if err != nil {
				logger.Warn("tables cannot be decoded", "error", err)
				return nil
			}
			PrintDecodeStats(out, stats)
			return nil
		},
	}
}

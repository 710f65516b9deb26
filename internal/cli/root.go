package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ecommerce-analytics/internal/config"
	"ecommerce-analytics/internal/observability"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	if err := NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

// NewRootCmd builds the command tree. Tables go to out, logs to logOut.
func NewRootCmd(out, logOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "order-analytics",
		Short:         "Order, KPI and RFM analytics over an e-commerce order export.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(logOut)

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.String("source", "", "source kind: csv, duckdb or postgres (default from SOURCE_KIND)")
	flags.String("dir", "", "directory with the exported CSV tables (default from SOURCE_DIR)")
	flags.String("dsn", "", "DuckDB file or Postgres URL (default from SOURCE_DSN)")

	rootCmd.AddCommand(
		NewRunCmd().Command(),
		NewDiagnoseCmd().Command(),
		NewHistoryCmd().Command(),
	)
	return rootCmd
}

// loadConfig reads the environment configuration and applies the persistent
// flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Root().PersistentFlags()
	overrides := []struct {
		name   string
		target *string
	}{
		{"source", &cfg.Source.Kind},
		{"dir", &cfg.Source.Dir},
		{"dsn", &cfg.Source.DSN},
	}
	for _, o := range overrides {
		if !flags.Changed(o.name) {
			continue
		}
		v, err := flags.GetString(o.name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", o.name, err)
		}
		*o.target = v
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	lc := config.LoggerConfig{Level: cfg.Logger.Level, Format: "pretty"}
	if verbose {
		lc.Level = "debug"
	}
	return observability.NewLoggerTo(cmd.ErrOrStderr(), lc), nil
}

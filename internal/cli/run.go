package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"ecommerce-analytics/internal/charts"
	"ecommerce-analytics/internal/config"
	"ecommerce-analytics/internal/export"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/services"
	"ecommerce-analytics/internal/store"
)

type RunCmd struct {
	clock clockwork.Clock
}

func NewRunCmd() *RunCmd {
	return &RunCmd{clock: clockwork.NewRealClock()}
}

func (c *RunCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the fact table, KPIs and RFM segments and export them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			quiet, err := cmd.Flags().GetBool("quiet")
			if err != nil {
				return fmt.Errorf("failed to get quiet flag: %w", err)
			}

			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			settings, err := services.SettingsFromConfig(cfg.Analysis)
			if err != nil {
				return err
			}

			src, err := loader.Open(ctx, cfg.Source.Kind, cfg.Source.Dir, cfg.Source.DSN, loader.DefaultTables())
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer src.Close()

			report, err := services.Run(ctx, src, services.PipelineOptions{
				Settings: settings,
				Clock:    c.clock,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			paths, err := export.WriteTables(cfg.Output.Dir, export.Tables{
				Facts:   report.Facts,
				RFM:     report.RFM,
				Monthly: report.Monthly,
				Yearly:  report.Yearly,
			})
			if err != nil {
				return fmt.Errorf("export tables: %w", err)
			}

			if cfg.Output.Charts {
				chartPaths, err := charts.WriteAll(filepath.Join(cfg.Output.Dir, "charts"),
					report.Monthly, report.Seasonality, report.Segments, report.DeliveryTimes)
				if err != nil {
					return fmt.Errorf("render charts: %w", err)
				}
				paths = append(paths, chartPaths...)
			}

			if cfg.Output.JSON {
				path := export.TimestampedFilename(cfg.Output.Dir, "report", c.clock.Now())
				if err := export.ExportJSON(path, report); err != nil {
					return fmt.Errorf("export report: %w", err)
				}
				paths = append(paths, path)
			}

			for _, p := range paths {
				logger.Info("exported", "path", p)
			}

			if cfg.Store.Enabled {
				runID, err := saveRun(ctx, cfg.Store, report)
				if err != nil {
					return fmt.Errorf("store run: %w", err)
				}
				logger.Info("run stored", "run_id", runID, "schema", cfg.Store.Schema)
			}

			if !quiet {
				PrintReport(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "output directory for exports (default from OUTPUT_DIR)")
	cmd.Flags().Bool("charts", true, "render SVG charts")
	cmd.Flags().Bool("json", false, "write a timestamped JSON report")
	cmd.Flags().String("binning", "", "RFM quantile policy: rank-first or strict (default from RFM_BINNING)")
	cmd.Flags().String("reference-date", "", "recency reference date YYYY-MM-DD (default: latest purchase)")
	cmd.Flags().Int("top", 0, "number of top categories and states (default from ANALYSIS_TOP_N)")
	cmd.Flags().Bool("store", false, "persist the run to Postgres")
	cmd.Flags().String("tag", "", "tag stored with the run")
	cmd.Flags().BoolP("quiet", "q", false, "do not print result tables")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("output") {
		if cfg.Output.Dir, err = flags.GetString("output"); err != nil {
			return fmt.Errorf("failed to get output flag: %w", err)
		}
	}
	if flags.Changed("charts") {
		if cfg.Output.Charts, err = flags.GetBool("charts"); err != nil {
			return fmt.Errorf("failed to get charts flag: %w", err)
		}
	}
	if flags.Changed("json") {
		if cfg.Output.JSON, err = flags.GetBool("json"); err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}
	}
	if flags.Changed("binning") {
		if cfg.Analysis.Binning, err = flags.GetString("binning"); err != nil {
			return fmt.Errorf("failed to get binning flag: %w", err)
		}
	}
	if flags.Changed("reference-date") {
		if cfg.Analysis.ReferenceDate, err = flags.GetString("reference-date"); err != nil {
			return fmt.Errorf("failed to get reference-date flag: %w", err)
		}
	}
	if flags.Changed("top") {
		if cfg.Analysis.TopN, err = flags.GetInt("top"); err != nil {
			return fmt.Errorf("failed to get top flag: %w", err)
		}
	}
	if flags.Changed("store") {
		if cfg.Store.Enabled, err = flags.GetBool("store"); err != nil {
			return fmt.Errorf("failed to get store flag: %w", err)
		}
	}
	if flags.Changed("tag") {
		if cfg.Store.Tag, err = flags.GetString("tag"); err != nil {
			return fmt.Errorf("failed to get tag flag: %w", err)
		}
	}
	return nil
}

func saveRun(ctx context.Context, cfg config.StoreConfig, r *services.Report) (string, error) {
	s, err := store.Open(ctx, cfg.DSN, cfg.Schema)
	if err != nil {
		return "", err
	}
	defer s.Close()

	return s.SaveRun(ctx, store.Run{
		Source:        r.Source,
		Tag:           cfg.Tag,
		Binning:       string(r.Settings.Binning),
		GeneratedAt:   r.GeneratedAt,
		ReferenceDate: r.ReferenceDate,
		Orders:        len(r.Facts),
		TotalRevenue:  r.Summary.TotalRevenue,
		Monthly:       r.Monthly,
		Yearly:        r.Yearly,
		RFM:           r.RFM,
		Segments:      r.Segments,
	})
}

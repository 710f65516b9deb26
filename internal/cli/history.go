package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ecommerce-analytics/internal/store"
)

type HistoryCmd struct{}

func NewHistoryCmd() *HistoryCmd {
	return &HistoryCmd{}
}

func (c *HistoryCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List analysis runs persisted in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.DSN == "" {
				return errors.New("no store configured: set STORE_DSN or DATABASE_URL")
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			s, err := store.Open(cmd.Context(), cfg.Store.DSN, cfg.Store.Schema)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.Runs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			PrintRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to list")
	return cmd
}

func PrintRuns(w io.Writer, runs []store.RunSummary) {
	section(w, "Stored runs")
	table := newTable(w, []string{"Run", "Generated", "Source", "Tag", "Orders", "Revenue"})
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			r.GeneratedAt.UTC().Format(time.DateTime),
			r.Source,
			r.Tag,
			strconv.Itoa(r.Orders),
			money(r.TotalRevenue),
		})
	}
	table.Render()
}

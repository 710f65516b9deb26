package cli

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"ecommerce-analytics/internal/config"
	"ecommerce-analytics/internal/models"
	"ecommerce-analytics/internal/rfm"
	"ecommerce-analytics/internal/services"
	"ecommerce-analytics/internal/store"
)

const fixtureDir = "../../testdata/olist"

func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand_WritesExports(t *testing.T) {
	outDir := t.TempDir()
	var logs bytes.Buffer
	root := NewRootCmd(&bytes.Buffer{}, &logs)

	// swap in a fixed clock for the JSON file name
	run := &RunCmd{clock: clockwork.NewFakeClockAt(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))}
	for _, c := range root.Commands() {
		if c.Name() == "run" {
			root.RemoveCommand(c)
		}
	}
	root.AddCommand(run.Command())

	out, err := execute(t, root, "run", "--source", "csv", "--dir", fixtureDir, "--output", outDir, "--json", "--top", "3")
	require.NoError(t, err, logs.String())

	for _, name := range []string{"facts.csv", "rfm.csv", "monthly_kpi.csv", "yearly_kpi.csv", "report_20240506_070809.json"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
	}
	for _, name := range []string{"monthly_revenue", "seasonality", "segment_revenue", "delivery_time"} {
		_, err := os.Stat(filepath.Join(outDir, "charts", name+".svg"))
		require.NoError(t, err, name)
	}

	f, err := os.Open(filepath.Join(outDir, "rfm.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7, "header plus six customers")

	require.Contains(t, out, "Monthly KPIs")
	require.Contains(t, out, "2018-01")
	require.Contains(t, out, "Sleeping")
}

func TestRunCommand_Quiet(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	out, err := execute(t, root, "run", "--dir", fixtureDir, "--output", t.TempDir(), "--charts=false", "-q")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRunCommand_InvalidBinning(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	_, err := execute(t, root, "run", "--dir", fixtureDir, "--output", t.TempDir(), "--binning", "dense")
	require.Error(t, err)
}

func TestRunCommand_MissingSource(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	_, err := execute(t, root, "run", "--dir", t.TempDir(), "--output", t.TempDir())
	require.Error(t, err)
}

func TestDiagnoseCommand(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	out, err := execute(t, root, "diagnose", "--dir", fixtureDir)
	require.NoError(t, err)
	require.Contains(t, out, "Source tables")
	require.Contains(t, out, "order_payments")
	require.Contains(t, out, "sellers")
	require.Contains(t, out, "Unparseable values")
}

func TestSettingsFromConfig(t *testing.T) {
	s, err := services.SettingsFromConfig(config.AnalysisConfig{Binning: "strict", TopN: 4, ReferenceDate: "2018-09-01"})
	require.NoError(t, err)
	require.Equal(t, rfm.BinStrict, s.Binning)
	require.Equal(t, 4, s.TopN)
	require.Equal(t, time.Date(2018, 9, 1, 23, 59, 59, 0, time.UTC), s.ReferenceDate)

	_, err = services.SettingsFromConfig(config.AnalysisConfig{Binning: "dense"})
	require.Error(t, err)
}

func TestHistoryCommand_RequiresStore(t *testing.T) {
	t.Setenv("STORE_DSN", "")
	t.Setenv("DATABASE_URL", "")

	root := NewRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	_, err := execute(t, root, "history")
	require.ErrorContains(t, err, "no store configured")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	PrintRuns(&buf, []store.RunSummary{{
		ID:           "5f0c7d2e-0000-4000-8000-000000000001",
		Source:       "csv:testdata/olist",
		Tag:          "nightly",
		GeneratedAt:  time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		Orders:       7,
		TotalRevenue: 833,
	}})

	out := buf.String()
	require.Contains(t, out, "Stored runs")
	require.Contains(t, out, "nightly")
	require.Contains(t, out, "2024-05-06 07:08:09")
	require.Contains(t, out, "833.00")
}

func TestPrintSegments_ReportsUndatedCustomers(t *testing.T) {
	var buf bytes.Buffer
	PrintSegments(&buf, []models.SegmentSummary{
		{Segment: models.SegmentLoyal, Customers: 1, Monetary: 165, AvgFrequency: 2, AvgRecencyDays: 11},
	}, time.Date(2018, 1, 31, 12, 0, 0, 0, time.UTC), 2)

	out := buf.String()
	require.Contains(t, out, "reference 2018-01-31")
	require.Contains(t, out, "2 undated customers skipped")
	require.Contains(t, out, "Loyal")
}

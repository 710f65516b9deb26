package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ecommerce-analytics/internal/models"
)

func TestSanitizeSchema(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"order_analytics", "order_analytics", false},
		{"  analytics2 ", "analytics2", false},
		{"", "", true},
		{"1abc", "", true},
		{"a;DROP TABLE x", "", true},
		{"public.x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeSchema(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSchemaStatements_Qualified(t *testing.T) {
	for _, stmt := range schemaStatements("olist") {
		require.Contains(t, stmt, "olist")
		if strings.Contains(stmt, "CREATE TABLE") {
			require.Contains(t, stmt, "olist.")
		}
	}
}

func TestNullHelpers(t *testing.T) {
	require.False(t, nullString("  ").Valid)
	require.Equal(t, "nightly", nullString("nightly").String)
	require.False(t, nullFloat(nil).Valid)
	require.Equal(t, 0.0, nullFloat(models.Float(0)).Float64)
	require.True(t, nullFloat(models.Float(0)).Valid)
	require.False(t, nullTime(time.Time{}).Valid)
}

// TestSaveRun_Postgres runs against a real database when STORE_TEST_DSN is set.
func TestSaveRun_Postgres(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_DSN not set")
	}

	ctx := context.Background()
	schema := "analytics_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	s, err := Open(ctx, dsn, schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE")
		s.Close()
	})

	run := Run{
		Source:      "csv:testdata",
		Binning:     "rank-first",
		GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Orders:      2,
		Monthly: []models.MonthlyKPI{
			{Month: models.Month{Year: 2017, Month: time.January}, Revenue: 10, MonthNum: 1},
		},
		RFM: []models.RFMRecord{{
			CustomerID: "c1", LastPurchase: time.Date(2017, 1, 5, 0, 0, 0, 0, time.UTC),
			Frequency: 1, Monetary: 10, RScore: 3, FScore: 1, MScore: 3, RFMScore: "313", Segment: models.SegmentNew,
		}},
		Segments: []models.SegmentSummary{{Segment: models.SegmentNew, Customers: 1, Monetary: 10, AvgFrequency: 1}},
	}
	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	runs, err := s.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, id, runs[0].ID)
}

package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"ecommerce-analytics/internal/facts"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/models"
	"ecommerce-analytics/internal/rfm"
)

const fixtureDir = "../../testdata/olist"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// copyFixture copies the sample tables into a temp dir so tests can touch
// file modification times.
func copyFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := os.ReadDir(fixtureDir)
	require.NoError(t, err)
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(fixtureDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), b, 0o644))
	}
	return dir
}

func TestRun_Fixture(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC))
	src := loader.NewCSVSource(fixtureDir, loader.DefaultTables())

	r, err := Run(context.Background(), src, PipelineOptions{
		Settings: Settings{TopN: 5},
		Clock:    clock,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	require.Equal(t, clock.Now(), r.GeneratedAt)
	require.Equal(t, rfm.BinRankFirst, r.Settings.Binning)
	require.Len(t, r.Facts, 7)
	require.Equal(t, 1, r.FactDiagnostics.OrdersWithoutItems)
	require.Equal(t, 1, r.FactDiagnostics.OrdersWithoutPayments)
	require.InDelta(t, 833.0, r.Summary.TotalRevenue, 1e-9)
	require.Equal(t, "beleza_saude", r.Summary.TopCategories[0].Key)
	require.Equal(t, "SP", r.Summary.TopStates[0].Key)
	require.InDelta(t, 5.8, *r.Summary.AvgDeliveryDays, 1e-9)
	require.Equal(t, []int{5, 4, 7, 10, 3}, r.DeliveryTimes)

	months := make([]string, len(r.Monthly))
	for i, m := range r.Monthly {
		months[i] = m.Month.String()
	}
	require.Equal(t, []string{"2017-01", "2017-06", "2017-11", "2017-12", "2018-01"}, months)
	// o7 is canceled without items: its month stays in the series at 0
	require.Zero(t, r.Monthly[1].Revenue)
	require.Nil(t, r.Monthly[2].MoMPct)
	require.Len(t, r.Yearly, 2)
	require.InDelta(t, (385.0-448.0)/448.0*100, *r.Yearly[1].YoYPct, 1e-9)

	want := map[string]struct {
		score   string
		segment models.Segment
		recency int
	}{
		"c1": {"322", models.SegmentLoyal, 11},
		"c2": {"213", models.SegmentPotential, 57},
		"c3": {"111", models.SegmentSleeping, 381},
		"c4": {"212", models.SegmentPotential, 62},
		"c5": {"313", models.SegmentNew, 0},
		"c6": {"111", models.SegmentSleeping, 244},
	}
	require.Len(t, r.RFM, len(want))
	for _, rec := range r.RFM {
		w := want[rec.CustomerID]
		require.Equal(t, w.score, rec.RFMScore, rec.CustomerID)
		require.Equal(t, w.segment, rec.Segment, rec.CustomerID)
		require.Equal(t, w.recency, rec.RecencyDays, rec.CustomerID)
	}
	require.Equal(t, time.Date(2018, 1, 31, 12, 0, 0, 0, time.UTC), r.ReferenceDate)

	segments := make([]models.Segment, len(r.Segments))
	for i, s := range r.Segments {
		segments[i] = s.Segment
	}
	require.Equal(t, []models.Segment{models.SegmentLoyal, models.SegmentNew, models.SegmentSleeping, models.SegmentPotential}, segments)
}

func TestRun_StrictBinningFailsOnTies(t *testing.T) {
	dir := copyFixture(t)
	// every customer buys once on the same day for the same amount
	orders := "order_id,customer_id,order_status,order_purchase_timestamp\n" +
		"o1,c1,delivered,2018-01-01 10:00:00\n" +
		"o2,c2,delivered,2018-01-01 10:00:00\n" +
		"o3,c3,delivered,2018-01-01 10:00:00\n"
	items := "order_id,product_id,price,freight_value\no1,p1,10,0\no2,p1,10,0\no3,p1,10,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"), []byte(orders), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "order_items.csv"), []byte(items), 0o644))

	src := loader.NewCSVSource(dir, loader.DefaultTables())
	_, err := Run(context.Background(), src, PipelineOptions{
		Settings: Settings{Binning: rfm.BinStrict, TopN: 3},
		Logger:   discardLogger(),
	})
	require.ErrorIs(t, err, rfm.ErrDegenerateBins)

	_, err = Run(context.Background(), src, PipelineOptions{
		Settings: Settings{Binning: rfm.BinRankFirst, TopN: 3},
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
}

func TestRun_MissingTable(t *testing.T) {
	dir := copyFixture(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "order_payments.csv")))

	_, err := Run(context.Background(), loader.NewCSVSource(dir, loader.DefaultTables()), PipelineOptions{Logger: discardLogger()})
	require.ErrorIs(t, err, loader.ErrMissingTable)
}

func TestAnalytics_NotReady(t *testing.T) {
	a := NewAnalytics(Settings{TopN: 5}, WithLogger(discardLogger()))

	_, err := a.Report()
	require.True(t, errors.Is(err, ErrNotReady))
	require.False(t, a.Ready())
	require.Nil(t, a.MonthlyKPI())
	require.Nil(t, a.RFM("", 0))
	require.Equal(t, false, a.Stats()["ready"])
}

func TestAnalytics_LoadAndQuery(t *testing.T) {
	a := NewAnalytics(Settings{TopN: 5}, WithLogger(discardLogger()))
	require.NoError(t, a.Load(context.Background(), loader.NewCSVSource(fixtureDir, loader.DefaultTables())))

	require.True(t, a.Ready())
	require.Len(t, a.MonthlyKPI(), 5)
	require.Len(t, a.YearlyKPI(), 2)
	require.Len(t, a.Seasonality(), 4)
	require.Len(t, a.RFM("", 0), 6)
	require.Len(t, a.RFM("", 2), 2)

	sleeping := a.RFM(models.SegmentSleeping, 0)
	require.Len(t, sleeping, 2)
	for _, r := range sleeping {
		require.Equal(t, models.SegmentSleeping, r.Segment)
	}
	require.Empty(t, a.RFM(models.SegmentVIP, 0))

	require.Len(t, a.TopCategories(1), 1)
	require.Len(t, a.TopStates(10), 3)
	require.Len(t, a.DeliveryTimes(), 5)

	stats := a.Stats()
	require.Equal(t, true, stats["ready"])
	require.Equal(t, 7, stats["orders"])
	require.Equal(t, 6, stats["customers"])
}

func TestAnalytics_Cache(t *testing.T) {
	dir := copyFixture(t)
	cacheDir := t.TempDir()
	src := loader.NewCSVSource(dir, loader.DefaultTables())

	first := NewAnalytics(Settings{TopN: 5}, WithLogger(discardLogger()), WithCacheDir(cacheDir))
	require.NoError(t, first.Load(context.Background(), src))

	files, err := filepath.Glob(filepath.Join(cacheDir, "*.gob"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	original, err := first.Report()
	require.NoError(t, err)

	second := NewAnalytics(Settings{TopN: 5}, WithLogger(discardLogger()), WithCacheDir(cacheDir))
	cached, err := second.loadFromCache(src)
	require.NoError(t, err)
	require.Equal(t, len(original.Facts), len(cached.Facts))
	require.Equal(t, original.Summary.TotalRevenue, cached.Summary.TotalRevenue)
	require.Equal(t, original.DeliveryTimes, cached.DeliveryTimes)
	require.Len(t, cached.RFM, len(original.RFM))
	for i := range original.RFM {
		require.Equal(t, original.RFM[i].RFMScore, cached.RFM[i].RFMScore)
		require.True(t, original.RFM[i].LastPurchase.Equal(cached.RFM[i].LastPurchase))
	}
	// o4 has zero freight; a zero must not come back as null
	require.NotNil(t, cached.Facts[3].FreightValue)
	require.Zero(t, *cached.Facts[3].FreightValue)

	other := NewAnalytics(Settings{TopN: 5, Binning: rfm.BinStrict}, WithLogger(discardLogger()), WithCacheDir(cacheDir))
	_, err = other.loadFromCache(src)
	require.Error(t, err, "different settings must not reuse the snapshot")

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "orders.csv"), later, later))
	_, err = second.loadFromCache(src)
	require.Error(t, err, "a newer source must invalidate the snapshot")
}

func TestAnalytics_SetReport(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	a := NewAnalytics(Settings{}, WithClock(clock), WithLogger(discardLogger()))

	a.SetReport(&Report{
		GeneratedAt: clock.Now(),
		Summary: facts.Summary{TopCategories: []models.RevenueByKey{
			{Key: "a", Revenue: 3},
			{Key: "b", Revenue: 2},
		}},
	})
	clock.Advance(90 * time.Second)

	require.Len(t, a.TopCategories(0), 2)
	require.Len(t, a.TopCategories(1), 1)
	require.Equal(t, "1m30s", a.Stats()["age"])
}

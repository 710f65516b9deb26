package charts

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ecommerce-analytics/internal/models"
)

func TestHistogram(t *testing.T) {
	bins := Histogram([]int{0, 1, 2, 3, 29, 30}, 30)
	require.Len(t, bins, 30)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	require.Equal(t, 6, total)
	require.Equal(t, 1, bins[0].Count)
	require.Equal(t, 2, bins[29].Count, "max value lands in the last bin")
	require.InDelta(t, 1.0, bins[0].Hi-bins[0].Lo, 1e-9)
}

func TestHistogram_Degenerate(t *testing.T) {
	require.Nil(t, Histogram(nil, 30))
	bins := Histogram([]int{4, 4, 4}, 30)
	require.Len(t, bins, 1)
	require.Equal(t, 3, bins[0].Count)
}

func TestChartRender_ValidSVG(t *testing.T) {
	c := Chart{
		Title: "Revenue <by> month",
		Bars: []Bar{
			{Label: "2017-01", Value: 100},
			{Label: "2017-02", Value: -20},
			{Label: "A&B", Value: 1500},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<svg"))
	require.Equal(t, 3, strings.Count(out, "<rect"))
	require.Contains(t, out, "Revenue &lt;by&gt; month")
	require.Contains(t, out, "A&amp;B")

	dec := xml.NewDecoder(&buf)
	for {
		_, err := dec.Token()
		if err != nil {
			require.Equal(t, "EOF", err.Error())
			break
		}
	}
}

func TestChartRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Chart{Title: "Empty"}.Render(&buf))
	require.Contains(t, buf.String(), "No data.")
	require.NotContains(t, buf.String(), "<rect")
}

func TestSegmentRevenueChart_SortedDescending(t *testing.T) {
	c := SegmentRevenueChart([]models.SegmentSummary{
		{Segment: models.SegmentVIP, Monetary: 10},
		{Segment: models.SegmentLoyal, Monetary: 30},
		{Segment: models.SegmentNew, Monetary: 20},
	})
	labels := make([]string, len(c.Bars))
	for i, b := range c.Bars {
		labels[i] = b.Label
	}
	require.Equal(t, []string{"Loyal", "New", "VIP"}, labels)
}

func TestSeasonalityChart_Labels(t *testing.T) {
	c := SeasonalityChart([]models.SeasonalityPoint{{MonthNum: 1, AvgRevenue: 5}, {MonthNum: 12, AvgRevenue: 7}})
	require.Equal(t, "Jan", c.Bars[0].Label)
	require.Equal(t, "Dec", c.Bars[1].Label)
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	monthly := []models.MonthlyKPI{
		{Month: models.Month{Year: 2017, Month: 1}, Revenue: 100, MonthNum: 1},
		{Month: models.Month{Year: 2017, Month: 2}, Revenue: 150, MonthNum: 2},
	}
	paths, err := WriteAll(dir, monthly, nil, nil, []int{1, 5, 9})
	require.NoError(t, err)
	require.Len(t, paths, len(Names))
	for _, name := range Names {
		b, err := os.ReadFile(filepath.Join(dir, name+".svg"))
		require.NoError(t, err)
		require.Contains(t, string(b), "</svg>")
	}

	_, err = Build("pie", nil, nil, nil, nil)
	require.Error(t, err)
}

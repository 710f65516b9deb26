package charts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"ecommerce-analytics/internal/models"
)

// HistogramBins is the number of bins of the delivery time histogram.
const HistogramBins = 30

// Names of the report charts, also used as file and route names.
const (
	MonthlyRevenue = "monthly_revenue"
	Seasonality    = "seasonality"
	SegmentRevenue = "segment_revenue"
	DeliveryTime   = "delivery_time"
)

var Names = []string{MonthlyRevenue, Seasonality, SegmentRevenue, DeliveryTime}

func MonthlyRevenueChart(rows []models.MonthlyKPI) Chart {
	bars := make([]Bar, len(rows))
	for i, r := range rows {
		bars[i] = Bar{Label: r.Month.String(), Value: r.Revenue}
	}
	return Chart{
		Title:      "Monthly revenue",
		XLabel:     "Month",
		YLabel:     "Revenue",
		Bars:       bars,
		LabelEvery: int(math.Ceil(float64(len(bars)) / 24)),
	}
}

func SeasonalityChart(points []models.SeasonalityPoint) Chart {
	bars := make([]Bar, len(points))
	for i, p := range points {
		bars[i] = Bar{Label: time.Month(p.MonthNum).String()[:3], Value: p.AvgRevenue}
	}
	return Chart{Title: "Average revenue by calendar month", XLabel: "Month", YLabel: "Average revenue", Bars: bars}
}

func SegmentRevenueChart(segments []models.SegmentSummary) Chart {
	sorted := slices.Clone(segments)
	slices.SortStableFunc(sorted, func(a, b models.SegmentSummary) int {
		switch {
		case a.Monetary > b.Monetary:
			return -1
		case a.Monetary < b.Monetary:
			return 1
		}
		return 0
	})
	bars := make([]Bar, len(sorted))
	for i, s := range sorted {
		bars[i] = Bar{Label: string(s.Segment), Value: s.Monetary}
	}
	return Chart{Title: "Revenue by customer segment", XLabel: "Segment", YLabel: "Revenue", Bars: bars}
}

func DeliveryTimeChart(days []int) Chart {
	bins := Histogram(days, HistogramBins)
	bars := make([]Bar, len(bins))
	for i, bin := range bins {
		bars[i] = Bar{Label: fmt.Sprintf("%.0f", bin.Lo), Value: float64(bin.Count)}
	}
	return Chart{Title: "Delivery time distribution", XLabel: "Days", YLabel: "Orders", Bars: bars, LabelEvery: 3}
}

type Bin struct {
	Lo, Hi float64
	Count  int
}

// Histogram splits [min, max] into n equal-width bins. The last bin is
// closed on the right. A single distinct value yields one bin.
func Histogram(values []int, n int) []Bin {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	lo, hi := float64(slices.Min(values)), float64(slices.Max(values))
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	for _, v := range values {
		idx := int((float64(v) - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}
	return bins
}

// Build returns the named chart for a report's tables.
func Build(name string, monthly []models.MonthlyKPI, seasonality []models.SeasonalityPoint, segments []models.SegmentSummary, delivery []int) (Chart, error) {
	switch name {
	case MonthlyRevenue:
		return MonthlyRevenueChart(monthly), nil
	case Seasonality:
		return SeasonalityChart(seasonality), nil
	case SegmentRevenue:
		return SegmentRevenueChart(segments), nil
	case DeliveryTime:
		return DeliveryTimeChart(delivery), nil
	default:
		return Chart{}, fmt.Errorf("unknown chart %q", name)
	}
}

// WriteAll renders every chart into dir as <name>.svg and returns the paths.
func WriteAll(dir string, monthly []models.MonthlyKPI, seasonality []models.SeasonalityPoint, segments []models.SegmentSummary, delivery []int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(Names))
	for _, name := range Names {
		c, err := Build(name, monthly, seasonality, segments, delivery)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name+".svg")
		if err := writeFile(path, c); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, c Chart) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Package kpi derives revenue time series from the fact table: monthly and
// yearly totals with period-over-period changes, a trailing rolling mean and
// a month-of-year seasonality profile.
//
// All window computations are by row position over the ascending period
// sequence. Months absent from the data are not filled in, so "12 rows
// earlier" is the same calendar month only when the series has no gaps.
package kpi

import (
	"slices"

	"ecommerce-analytics/internal/models"
)

const (
	RollingWindow = 3
	YearLag       = 12
)

// PctChange is (cur-prev)/prev*100. It returns nil when either value is nil
// or prev is zero.
func PctChange(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	v := (*cur - *prev) / *prev * 100
	return &v
}

// Monthly groups fact revenue by purchase month and derives the window
// columns. Every month with a dated fact gets a row; a month whose facts
// all lack revenue sums to 0. Facts without a month do not contribute.
func Monthly(facts []models.OrderFact) []models.MonthlyKPI {
	groups := make(map[models.Month]float64)
	for _, f := range facts {
		if f.Month == nil {
			continue
		}
		groups[*f.Month] += revenueOf(f)
	}

	rows := make([]models.MonthlyKPI, 0, len(groups))
	for m, revenue := range groups {
		rows = append(rows, models.MonthlyKPI{Month: m, Revenue: revenue, MonthNum: int(m.Month)})
	}
	slices.SortFunc(rows, func(a, b models.MonthlyKPI) int {
		return a.Month.Compare(b.Month)
	})

	Derive(rows)
	return rows
}

// Derive fills the window columns of rows, which must already be sorted by
// month ascending.
func Derive(rows []models.MonthlyKPI) {
	revenue := make([]float64, len(rows))
	for i := range rows {
		revenue[i] = rows[i].Revenue
	}

	for i := range rows {
		cur := &revenue[i]
		rows[i].MoMPct = nil
		rows[i].YoYRollingPct = nil
		rows[i].Rolling3M = nil
		rows[i].RevenueLastYear = nil
		rows[i].YoYSameMonthPct = nil

		if i >= 1 {
			rows[i].MoMPct = PctChange(cur, &revenue[i-1])
		}
		if i >= RollingWindow-1 {
			rows[i].Rolling3M = mean(revenue[i-RollingWindow+1 : i+1])
		}
		if i >= YearLag {
			last := revenue[i-YearLag]
			rows[i].RevenueLastYear = &last
			rows[i].YoYRollingPct = PctChange(cur, &last)
			rows[i].YoYSameMonthPct = PctChange(cur, rows[i].RevenueLastYear)
		}
	}
}

// Yearly groups fact revenue by purchase year with a year-over-year change.
// Like Monthly, a year of revenue-less facts still gets a zero row.
func Yearly(facts []models.OrderFact) []models.YearlyKPI {
	groups := make(map[int]float64)
	for _, f := range facts {
		if f.Year == nil {
			continue
		}
		groups[*f.Year] += revenueOf(f)
	}

	rows := make([]models.YearlyKPI, 0, len(groups))
	for y, revenue := range groups {
		rows = append(rows, models.YearlyKPI{Year: y, Revenue: revenue})
	}
	slices.SortFunc(rows, func(a, b models.YearlyKPI) int {
		return a.Year - b.Year
	})

	for i := 1; i < len(rows); i++ {
		rows[i].YoYPct = PctChange(&rows[i].Revenue, &rows[i-1].Revenue)
	}
	return rows
}

// Seasonality averages monthly revenue per calendar month across years. Only
// months that occur in the data are returned, ordered January first.
func Seasonality(monthly []models.MonthlyKPI) []models.SeasonalityPoint {
	var sums [13]float64
	var counts [13]int
	for _, m := range monthly {
		sums[m.MonthNum] += m.Revenue
		counts[m.MonthNum]++
	}

	out := make([]models.SeasonalityPoint, 0, 12)
	for n := 1; n <= 12; n++ {
		if counts[n] == 0 {
			continue
		}
		out = append(out, models.SeasonalityPoint{MonthNum: n, AvgRevenue: sums[n] / float64(counts[n])})
	}
	return out
}

func revenueOf(f models.OrderFact) float64 {
	if f.Revenue == nil {
		return 0
	}
	return *f.Revenue
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

// Total sums a monthly series.
func Total(monthly []models.MonthlyKPI) float64 {
	var sum float64
	for _, m := range monthly {
		sum += m.Revenue
	}
	return sum
}

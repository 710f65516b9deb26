package models

// MonthlyKPI is one row of the monthly KPI table. Window columns are nil
// until enough preceding rows exist or when the denominator is zero.
type MonthlyKPI struct {
	Month           Month    `json:"month"`
	Revenue         float64  `json:"revenue"`
	MoMPct          *float64 `json:"MoM"`
	YoYRollingPct   *float64 `json:"YoY_rolling"`
	Rolling3M       *float64 `json:"rolling_3m"`
	RevenueLastYear *float64 `json:"revenue_last_year"`
	YoYSameMonthPct *float64 `json:"YoY_same_month"`
	MonthNum        int      `json:"month_num"`
}

type YearlyKPI struct {
	Year    int      `json:"year"`
	Revenue float64  `json:"revenue"`
	YoYPct  *float64 `json:"YoY"`
}

type SeasonalityPoint struct {
	MonthNum   int     `json:"month_num"`
	AvgRevenue float64 `json:"avg_revenue"`
}

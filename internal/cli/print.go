package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"ecommerce-analytics/internal/facts"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/models"
	"ecommerce-analytics/internal/services"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
}

// PrintReport writes the headline tables of r.
func PrintReport(w io.Writer, r *services.Report) {
	PrintTableDiagnostics(w, r.Tables)
	PrintFactDiagnostics(w, len(r.Facts), r.FactDiagnostics)
	PrintSummary(w, r.Summary)
	PrintMonthlyKPI(w, r.Monthly)
	PrintYearlyKPI(w, r.Yearly)
	PrintSeasonality(w, r.Seasonality)
	PrintSegments(w, r.Segments, r.ReferenceDate, r.UndatedCustomers)
}

func PrintTableDiagnostics(w io.Writer, diags []loader.Diagnostics) {
	section(w, "Source tables")
	table := newTable(w, []string{"Table", "Rows", "Columns", "Nulls", "Duplicates"})
	for _, d := range diags {
		table.Append([]string{
			d.Table,
			strconv.Itoa(d.Rows),
			strconv.Itoa(d.Columns),
			strconv.Itoa(d.TotalNulls()),
			strconv.Itoa(d.Duplicates),
		})
	}
	table.Render()
}

func PrintDecodeStats(w io.Writer, stats loader.DecodeStats) {
	section(w, "Unparseable values (read as null)")
	table := newTable(w, []string{"Column", "Kind", "Count"})
	add := func(kind string, counts map[string]int) {
		cols := make([]string, 0, len(counts))
		for c := range counts {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			table.Append([]string{c, kind, strconv.Itoa(counts[c])})
		}
	}
	add("date", stats.InvalidDates)
	add("number", stats.InvalidNumbers)
	table.Render()
}

func PrintFactDiagnostics(w io.Writer, orders int, d facts.Diagnostics) {
	section(w, "Fact table checks")
	table := newTable(w, []string{"Check", "Count"})
	table.AppendBulk([][]string{
		{"orders", strconv.Itoa(orders)},
		{"duplicate order ids", strconv.Itoa(d.DuplicateOrders)},
		{"negative price", strconv.Itoa(d.NegativePrice)},
		{"negative freight", strconv.Itoa(d.NegativeFreight)},
		{"orders without items", strconv.Itoa(d.OrdersWithoutItems)},
		{"orders without payments", strconv.Itoa(d.OrdersWithoutPayments)},
		{"unmatched customers", strconv.Itoa(d.UnmatchedCustomers)},
		{"uncategorized orders", strconv.Itoa(d.UncategorizedOrders)},
	})
	table.Render()
}

func PrintSummary(w io.Writer, s facts.Summary) {
	section(w, "Summary")
	table := newTable(w, []string{"Metric", "Value"})
	table.Append([]string{"orders", strconv.Itoa(s.Orders)})
	table.Append([]string{"customers", strconv.Itoa(s.Customers)})
	table.Append([]string{"total revenue", money(s.TotalRevenue)})
	table.Append([]string{"avg delivery days", optional(s.AvgDeliveryDays, "%.1f")})
	if s.FirstPurchase != nil && s.LastPurchase != nil {
		table.Append([]string{"purchase range", s.FirstPurchase.Format(time.DateOnly) + " .. " + s.LastPurchase.Format(time.DateOnly)})
	}
	table.Render()

	section(w, "Top categories by revenue")
	printRevenue(w, "Category", s.TopCategories)
	section(w, "Top states by revenue")
	printRevenue(w, "State", s.TopStates)
}

func printRevenue(w io.Writer, key string, rows []models.RevenueByKey) {
	table := newTable(w, []string{key, "Revenue"})
	for _, r := range rows {
		table.Append([]string{r.Key, money(r.Revenue)})
	}
	table.Render()
}

func PrintMonthlyKPI(w io.Writer, rows []models.MonthlyKPI) {
	section(w, "Monthly KPIs")
	table := newTable(w, []string{"Month", "Revenue", "MoM %", "Rolling 3M", "YoY rolling %", "YoY same month %"})
	for _, r := range rows {
		table.Append([]string{
			r.Month.String(),
			money(r.Revenue),
			optional(r.MoMPct, "%.2f"),
			optional(r.Rolling3M, "%.2f"),
			optional(r.YoYRollingPct, "%.2f"),
			optional(r.YoYSameMonthPct, "%.2f"),
		})
	}
	table.Render()
}

func PrintYearlyKPI(w io.Writer, rows []models.YearlyKPI) {
	section(w, "Yearly KPIs")
	table := newTable(w, []string{"Year", "Revenue", "YoY %"})
	for _, r := range rows {
		table.Append([]string{strconv.Itoa(r.Year), money(r.Revenue), optional(r.YoYPct, "%.2f")})
	}
	table.Render()
}

func PrintSeasonality(w io.Writer, points []models.SeasonalityPoint) {
	section(w, "Seasonality")
	table := newTable(w, []string{"Month", "Avg revenue"})
	for _, p := range points {
		table.Append([]string{time.Month(p.MonthNum).String(), money(p.AvgRevenue)})
	}
	table.Render()
}

func PrintSegments(w io.Writer, segments []models.SegmentSummary, ref time.Time, undated int) {
	section(w, fmt.Sprintf("RFM segments (reference %s, %d undated customers skipped)", ref.Format(time.DateOnly), undated))
	table := newTable(w, []string{"Segment", "Customers", "Revenue", "Avg frequency", "Avg recency (days)"})
	for _, s := range segments {
		table.Append([]string{
			string(s.Segment),
			strconv.Itoa(s.Customers),
			money(s.Monetary),
			fmt.Sprintf("%.2f", s.AvgFrequency),
			fmt.Sprintf("%.1f", s.AvgRecencyDays),
		})
	}
	table.Render()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

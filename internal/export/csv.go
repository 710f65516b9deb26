// Package export writes the derived tables as CSV files and the full report
// as JSON.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ecommerce-analytics/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

var FactColumns = []string{
	"order_id",
	"customer_id",
	"customer_unique_id",
	"customer_city",
	"customer_state",
	"order_status",
	"order_purchase_timestamp",
	"order_approved_at",
	"order_delivered_carrier_date",
	"order_delivered_customer_date",
	"order_estimated_delivery_date",
	"product_category_name",
	"product_category_name_english",
	"price",
	"freight_value",
	"payment_value",
	"revenue",
	"delivery_time",
	"month",
	"year",
}

var RFMColumns = []string{
	"customer_id",
	"last_purchase",
	"Recency",
	"Frequency",
	"Monetary",
	"R_score",
	"F_score",
	"M_score",
	"RFM_score",
	"Segment",
}

var MonthlyKPIColumns = []string{
	"month",
	"revenue",
	"MoM",
	"YoY_rolling",
	"rolling_3m",
	"revenue_last_year",
	"YoY_same_month",
	"month_num",
}

var YearlyKPIColumns = []string{"year", "revenue", "YoY"}

func WriteFacts(w io.Writer, facts []models.OrderFact) error {
	return writeCSV(w, FactColumns, len(facts), func(i int) []string {
		f := facts[i]
		month := ""
		if f.Month != nil {
			month = f.Month.String()
		}
		return []string{
			f.OrderID,
			f.CustomerID,
			f.CustomerUniqueID,
			f.CustomerCity,
			f.CustomerState,
			f.OrderStatus,
			formatTime(f.PurchaseTimestamp),
			formatTime(f.ApprovedAt),
			formatTime(f.DeliveredCarrierDate),
			formatTime(f.DeliveredCustomerDate),
			formatTime(f.EstimatedDeliveryDate),
			f.ProductCategoryName,
			f.ProductCategoryNameEnglish,
			formatFloat(f.Price),
			formatFloat(f.FreightValue),
			formatFloat(f.PaymentValue),
			formatFloat(f.Revenue),
			formatInt(f.DeliveryTimeDays),
			month,
			formatInt(f.Year),
		}
	})
}

func WriteRFM(w io.Writer, records []models.RFMRecord) error {
	return writeCSV(w, RFMColumns, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.CustomerID,
			r.LastPurchase.Format(timestampLayout),
			strconv.Itoa(r.RecencyDays),
			strconv.Itoa(r.Frequency),
			strconv.FormatFloat(r.Monetary, 'f', -1, 64),
			strconv.Itoa(r.RScore),
			strconv.Itoa(r.FScore),
			strconv.Itoa(r.MScore),
			r.RFMScore,
			string(r.Segment),
		}
	})
}

func WriteMonthlyKPI(w io.Writer, rows []models.MonthlyKPI) error {
	return writeCSV(w, MonthlyKPIColumns, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.Month.String(),
			strconv.FormatFloat(r.Revenue, 'f', -1, 64),
			formatFloat(r.MoMPct),
			formatFloat(r.YoYRollingPct),
			formatFloat(r.Rolling3M),
			formatFloat(r.RevenueLastYear),
			formatFloat(r.YoYSameMonthPct),
			strconv.Itoa(r.MonthNum),
		}
	})
}

func WriteYearlyKPI(w io.Writer, rows []models.YearlyKPI) error {
	return writeCSV(w, YearlyKPIColumns, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			strconv.Itoa(r.Year),
			strconv.FormatFloat(r.Revenue, 'f', -1, 64),
			formatFloat(r.YoYPct),
		}
	})
}

func writeCSV(w io.Writer, header []string, n int, record func(i int) []string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(record(i)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Nulls are written as empty cells.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}

// Tables are the derived tables written by WriteTables.
type Tables struct {
	Facts   []models.OrderFact
	RFM     []models.RFMRecord
	Monthly []models.MonthlyKPI
	Yearly  []models.YearlyKPI
}

// WriteTables writes facts.csv, rfm.csv, monthly_kpi.csv and yearly_kpi.csv
// into dir and returns the written paths.
func WriteTables(dir string, t Tables) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"facts.csv", func(w io.Writer) error { return WriteFacts(w, t.Facts) }},
		{"rfm.csv", func(w io.Writer) error { return WriteRFM(w, t.RFM) }},
		{"monthly_kpi.csv", func(w io.Writer) error { return WriteMonthlyKPI(w, t.Monthly) }},
		{"yearly_kpi.csv", func(w io.Writer) error { return WriteYearlyKPI(w, t.Yearly) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

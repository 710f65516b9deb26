package loader

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ecommerce-analytics/internal/models"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTime parses the date formats seen in order exports. It returns nil
// for empty or unparseable input instead of an error.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseFloat returns nil for empty input. ok is false when the input was
// present but not a finite number; NaN and Inf spellings count as invalid.
func ParseFloat(s string) (v *float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// DecodeStats counts source values that were present but could not be parsed
// and were therefore turned into nulls.
type DecodeStats struct {
	InvalidDates   map[string]int `json:"invalid_dates"`
	InvalidNumbers map[string]int `json:"invalid_numbers"`
}

func newDecodeStats() DecodeStats {
	return DecodeStats{
		InvalidDates:   make(map[string]int),
		InvalidNumbers: make(map[string]int),
	}
}

func (s DecodeStats) date(column, raw string, parsed *time.Time) *time.Time {
	if parsed == nil && strings.TrimSpace(raw) != "" {
		s.InvalidDates[column]++
	}
	return parsed
}

func (s DecodeStats) number(column, raw string) *float64 {
	v, ok := ParseFloat(raw)
	if !ok {
		s.InvalidNumbers[column]++
	}
	return v
}

// OrderDateColumns are the order columns converted to timestamps.
var OrderDateColumns = []string{
	"order_purchase_timestamp",
	"order_approved_at",
	"order_delivered_carrier_date",
	"order_delivered_customer_date",
	"order_estimated_delivery_date",
}

// Decode converts the raw tables the fact builder needs into typed rows.
func Decode(raw Raw) (models.Dataset, DecodeStats, error) {
	stats := newDecodeStats()
	var ds models.Dataset

	for _, name := range []string{TableOrders, TableCustomers, TableItems, TablePayments, TableProducts, TableCategories} {
		if raw[name] == nil {
			return ds, stats, fmt.Errorf("%w: %s", ErrMissingTable, name)
		}
	}

	var err error
	if ds.Orders, err = decodeOrders(raw[TableOrders], stats); err != nil {
		return ds, stats, err
	}
	if ds.Customers, err = decodeCustomers(raw[TableCustomers]); err != nil {
		return ds, stats, err
	}
	if ds.Items, err = decodeItems(raw[TableItems], stats); err != nil {
		return ds, stats, err
	}
	if ds.Payments, err = decodePayments(raw[TablePayments], stats); err != nil {
		return ds, stats, err
	}
	if ds.Products, err = decodeProducts(raw[TableProducts]); err != nil {
		return ds, stats, err
	}
	if ds.Translations, err = decodeTranslations(raw[TableCategories]); err != nil {
		return ds, stats, err
	}
	return ds, stats, nil
}

// optional returns -1 for a column the table does not have.
func optional(t *Table, name string) int {
	idx, err := t.Column(name)
	if err != nil {
		return -1
	}
	return idx
}

func decodeOrders(t *Table, stats DecodeStats) ([]models.Order, error) {
	req, err := t.columns("order_id", "customer_id")
	if err != nil {
		return nil, err
	}
	status := optional(t, "order_status")
	dates := make([]int, len(OrderDateColumns))
	for i, c := range OrderDateColumns {
		dates[i] = optional(t, c)
	}
	if dates[0] < 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingColumn, t.Name, OrderDateColumns[0])
	}

	out := make([]models.Order, 0, len(t.Rows))
	for _, row := range t.Rows {
		parsed := make([]*time.Time, len(dates))
		for i, idx := range dates {
			v := cell(row, idx)
			parsed[i] = stats.date(OrderDateColumns[i], v, ParseTime(v))
		}
		out = append(out, models.Order{
			OrderID:               cell(row, req[0]),
			CustomerID:            cell(row, req[1]),
			Status:                cell(row, status),
			PurchaseTimestamp:     parsed[0],
			ApprovedAt:            parsed[1],
			DeliveredCarrierDate:  parsed[2],
			DeliveredCustomerDate: parsed[3],
			EstimatedDeliveryDate: parsed[4],
		})
	}
	return out, nil
}

func decodeCustomers(t *Table) ([]models.Customer, error) {
	id, err := t.Column("customer_id")
	if err != nil {
		return nil, err
	}
	unique := optional(t, "customer_unique_id")
	zip := optional(t, "customer_zip_code_prefix")
	city := optional(t, "customer_city")
	state := optional(t, "customer_state")

	out := make([]models.Customer, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Customer{
			CustomerID:       cell(row, id),
			CustomerUniqueID: cell(row, unique),
			ZipCodePrefix:    cell(row, zip),
			City:             cell(row, city),
			State:            cell(row, state),
		})
	}
	return out, nil
}

func decodeItems(t *Table, stats DecodeStats) ([]models.OrderItem, error) {
	req, err := t.columns("order_id", "product_id", "price", "freight_value")
	if err != nil {
		return nil, err
	}
	itemID := optional(t, "order_item_id")
	seller := optional(t, "seller_id")

	out := make([]models.OrderItem, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.OrderItem{
			OrderID:      cell(row, req[0]),
			ItemID:       cell(row, itemID),
			ProductID:    cell(row, req[1]),
			SellerID:     cell(row, seller),
			Price:        stats.number("price", cell(row, req[2])),
			FreightValue: stats.number("freight_value", cell(row, req[3])),
		})
	}
	return out, nil
}

func decodePayments(t *Table, stats DecodeStats) ([]models.Payment, error) {
	req, err := t.columns("order_id", "payment_value")
	if err != nil {
		return nil, err
	}
	seq := optional(t, "payment_sequential")
	typ := optional(t, "payment_type")
	inst := optional(t, "payment_installments")

	out := make([]models.Payment, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Payment{
			OrderID:      cell(row, req[0]),
			Sequential:   cell(row, seq),
			Type:         cell(row, typ),
			Installments: cell(row, inst),
			Value:        stats.number("payment_value", cell(row, req[1])),
		})
	}
	return out, nil
}

func decodeProducts(t *Table) ([]models.Product, error) {
	req, err := t.columns("product_id", "product_category_name")
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Product{
			ProductID:    cell(row, req[0]),
			CategoryName: cell(row, req[1]),
		})
	}
	return out, nil
}

func decodeTranslations(t *Table) ([]models.CategoryTranslation, error) {
	req, err := t.columns("product_category_name", "product_category_name_english")
	if err != nil {
		return nil, err
	}
	out := make([]models.CategoryTranslation, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.CategoryTranslation{
			CategoryName:        cell(row, req[0]),
			CategoryNameEnglish: cell(row, req[1]),
		})
	}
	return out, nil
}

// row builds a table row from plain strings; empty strings become nulls.
func row(values ...string) []sql.NullString {
	out := make([]sql.NullString, len(values))
	for i, v := range values {
		if v != "" {
			out[i] = sql.NullString{String: v, Valid: true}
		}
	}
	return out
}

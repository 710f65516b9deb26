// Package facts builds the order-level fact table from the typed source
// tables: one row per order with aggregated item and payment values and the
// customer and category dimensions joined in.
package facts

import (
	"math"
	"time"

	"ecommerce-analytics/internal/models"
)

type Diagnostics struct {
	NegativePrice         int `json:"negative_price"`
	NegativeFreight       int `json:"negative_freight"`
	DuplicateOrders       int `json:"duplicate_orders"`
	OrdersWithoutItems    int `json:"orders_without_items"`
	OrdersWithoutPayments int `json:"orders_without_payments"`
	UnmatchedCustomers    int `json:"unmatched_customers"`
	UncategorizedOrders   int `json:"uncategorized_orders"`
}

type Result struct {
	Facts       []models.OrderFact
	Diagnostics Diagnostics
}

type itemAggregate struct {
	price   float64
	freight float64
	// first product in source row order; decides the order's category
	firstProduct string
}

// Build joins orders → customers → item aggregates → category → translated
// category → payment aggregates with left-join semantics. Orders repeating
// an earlier order_id are dropped so the result has one row per order.
func Build(ds models.Dataset) Result {
	var diag Diagnostics

	customers := make(map[string]models.Customer, len(ds.Customers))
	for _, c := range ds.Customers {
		if _, ok := customers[c.CustomerID]; !ok {
			customers[c.CustomerID] = c
		}
	}

	items := aggregateItems(ds.Items)
	payments := aggregatePayments(ds.Payments)

	categories := make(map[string]string, len(ds.Products))
	for _, p := range ds.Products {
		if _, ok := categories[p.ProductID]; !ok {
			categories[p.ProductID] = p.CategoryName
		}
	}

	translations := make(map[string]string, len(ds.Translations))
	for _, tr := range ds.Translations {
		if _, ok := translations[tr.CategoryName]; !ok {
			translations[tr.CategoryName] = tr.CategoryNameEnglish
		}
	}

	seen := make(map[string]struct{}, len(ds.Orders))
	out := make([]models.OrderFact, 0, len(ds.Orders))

	for _, o := range ds.Orders {
		if _, dup := seen[o.OrderID]; dup {
			diag.DuplicateOrders++
			continue
		}
		seen[o.OrderID] = struct{}{}

		f := models.OrderFact{
			OrderID:               o.OrderID,
			CustomerID:            o.CustomerID,
			OrderStatus:           o.Status,
			PurchaseTimestamp:     o.PurchaseTimestamp,
			ApprovedAt:            o.ApprovedAt,
			DeliveredCarrierDate:  o.DeliveredCarrierDate,
			DeliveredCustomerDate: o.DeliveredCustomerDate,
			EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		}

		if c, ok := customers[o.CustomerID]; ok {
			f.CustomerUniqueID = c.CustomerUniqueID
			f.CustomerCity = c.City
			f.CustomerState = c.State
		} else {
			diag.UnmatchedCustomers++
		}

		if agg, ok := items[o.OrderID]; ok {
			f.Price = models.Float(agg.price)
			f.FreightValue = models.Float(agg.freight)
			f.Revenue = models.Float(agg.price + agg.freight)
			f.ProductCategoryName = categories[agg.firstProduct]
		} else {
			diag.OrdersWithoutItems++
		}

		if f.ProductCategoryName != "" {
			f.ProductCategoryNameEnglish = translations[f.ProductCategoryName]
		} else {
			diag.UncategorizedOrders++
		}

		if v, ok := payments[o.OrderID]; ok {
			f.PaymentValue = models.Float(v)
		} else {
			diag.OrdersWithoutPayments++
		}

		f.DeliveryTimeDays = DeliveryDays(o.PurchaseTimestamp, o.DeliveredCustomerDate)
		if o.PurchaseTimestamp != nil {
			m := models.MonthOf(*o.PurchaseTimestamp)
			f.Month = &m
			f.Year = models.Int(o.PurchaseTimestamp.Year())
		}

		if f.Price != nil && *f.Price < 0 {
			diag.NegativePrice++
		}
		if f.FreightValue != nil && *f.FreightValue < 0 {
			diag.NegativeFreight++
		}

		out = append(out, f)
	}

	return Result{Facts: out, Diagnostics: diag}
}

// aggregateItems sums price and freight per order. Null values inside an
// item row are skipped, so an order whose items are all null sums to zero.
func aggregateItems(rows []models.OrderItem) map[string]*itemAggregate {
	out := make(map[string]*itemAggregate)
	for _, it := range rows {
		agg := out[it.OrderID]
		if agg == nil {
			agg = &itemAggregate{firstProduct: it.ProductID}
			out[it.OrderID] = agg
		}
		if it.Price != nil {
			agg.price += *it.Price
		}
		if it.FreightValue != nil {
			agg.freight += *it.FreightValue
		}
	}
	return out
}

func aggregatePayments(rows []models.Payment) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range rows {
		v := out[p.OrderID]
		if p.Value != nil {
			v += *p.Value
		}
		out[p.OrderID] = v
	}
	return out
}

// DeliveryDays is the whole number of days (floored) from purchase to
// delivery, or nil when either date is missing.
func DeliveryDays(purchase, delivered *time.Time) *int {
	if purchase == nil || delivered == nil {
		return nil
	}
	days := int(math.Floor(delivered.Sub(*purchase).Hours() / 24))
	return &days
}

package facts

import (
	"cmp"
	"slices"
	"time"

	"ecommerce-analytics/internal/models"
)

// Summary holds the headline business figures of a fact table.
type Summary struct {
	Orders          int                    `json:"orders"`
	Customers       int                    `json:"customers"`
	TotalRevenue    float64                `json:"total_revenue"`
	TopCategories   []models.RevenueByKey  `json:"top_categories"`
	TopStates       []models.RevenueByKey  `json:"top_states"`
	AvgDeliveryDays *float64               `json:"avg_delivery_days"`
	OrdersPerMonth  []models.MonthlyOrders `json:"orders_per_month"`
	StatusCounts    []models.CountByKey    `json:"status_counts"`
	FirstPurchase   *time.Time             `json:"first_purchase"`
	LastPurchase    *time.Time             `json:"last_purchase"`
}

// Summarize computes totals, top-N categories and states by revenue,
// delivery time and order counts. Null revenues and empty keys are skipped.
func Summarize(facts []models.OrderFact, topN int) Summary {
	s := Summary{Orders: len(facts)}

	categoryRevenue := make(map[string]float64)
	stateRevenue := make(map[string]float64)
	monthOrders := make(map[models.Month]map[string]struct{})
	statuses := make(map[string]int)
	customers := make(map[string]struct{})

	var deliverySum float64
	var deliveryCount int

	for _, f := range facts {
		customers[f.CustomerID] = struct{}{}
		if f.OrderStatus != "" {
			statuses[f.OrderStatus]++
		}

		if f.Revenue != nil {
			s.TotalRevenue += *f.Revenue
			if f.ProductCategoryName != "" {
				categoryRevenue[f.ProductCategoryName] += *f.Revenue
			}
			if f.CustomerState != "" {
				stateRevenue[f.CustomerState] += *f.Revenue
			}
		}

		if f.DeliveryTimeDays != nil {
			deliverySum += float64(*f.DeliveryTimeDays)
			deliveryCount++
		}

		if f.Month != nil {
			ids := monthOrders[*f.Month]
			if ids == nil {
				ids = make(map[string]struct{})
				monthOrders[*f.Month] = ids
			}
			ids[f.OrderID] = struct{}{}
		}

		if f.PurchaseTimestamp != nil {
			ts := *f.PurchaseTimestamp
			if s.FirstPurchase == nil || ts.Before(*s.FirstPurchase) {
				s.FirstPurchase = &ts
			}
			if s.LastPurchase == nil || ts.After(*s.LastPurchase) {
				s.LastPurchase = &ts
			}
		}
	}

	s.Customers = len(customers)
	s.TopCategories = topRevenue(categoryRevenue, topN)
	s.TopStates = topRevenue(stateRevenue, topN)
	if deliveryCount > 0 {
		avg := deliverySum / float64(deliveryCount)
		s.AvgDeliveryDays = &avg
	}

	s.OrdersPerMonth = make([]models.MonthlyOrders, 0, len(monthOrders))
	for m, ids := range monthOrders {
		s.OrdersPerMonth = append(s.OrdersPerMonth, models.MonthlyOrders{Month: m, Orders: len(ids)})
	}
	slices.SortFunc(s.OrdersPerMonth, func(a, b models.MonthlyOrders) int {
		return a.Month.Compare(b.Month)
	})

	s.StatusCounts = make([]models.CountByKey, 0, len(statuses))
	for k, n := range statuses {
		s.StatusCounts = append(s.StatusCounts, models.CountByKey{Key: k, Count: n})
	}
	slices.SortFunc(s.StatusCounts, func(a, b models.CountByKey) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	return s
}

func topRevenue(groups map[string]float64, limit int) []models.RevenueByKey {
	result := make([]models.RevenueByKey, 0, len(groups))
	for k, v := range groups {
		result = append(result, models.RevenueByKey{Key: k, Revenue: v})
	}
	slices.SortFunc(result, func(a, b models.RevenueByKey) int {
		if a.Revenue > b.Revenue {
			return -1
		}
		if a.Revenue < b.Revenue {
			return 1
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// DeliveryTimes returns the non-null delivery times in fact order.
func DeliveryTimes(facts []models.OrderFact) []int {
	out := make([]int, 0, len(facts))
	for _, f := range facts {
		if f.DeliveryTimeDays != nil {
			out = append(out, *f.DeliveryTimeDays)
		}
	}
	return out
}

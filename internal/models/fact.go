package models

import "time"

// OrderFact is the denormalized, one-row-per-order table. Nil pointers are
// nulls produced by missing join matches or unparseable source values.
type OrderFact struct {
	OrderID                    string     `json:"order_id"`
	CustomerID                 string     `json:"customer_id"`
	CustomerUniqueID           string     `json:"customer_unique_id"`
	CustomerCity               string     `json:"customer_city"`
	CustomerState              string     `json:"customer_state"`
	OrderStatus                string     `json:"order_status"`
	PurchaseTimestamp          *time.Time `json:"order_purchase_timestamp"`
	ApprovedAt                 *time.Time `json:"order_approved_at"`
	DeliveredCarrierDate       *time.Time `json:"order_delivered_carrier_date"`
	DeliveredCustomerDate      *time.Time `json:"order_delivered_customer_date"`
	EstimatedDeliveryDate      *time.Time `json:"order_estimated_delivery_date"`
	ProductCategoryName        string     `json:"product_category_name"`
	ProductCategoryNameEnglish string     `json:"product_category_name_english"`
	Price                      *float64   `json:"price"`
	FreightValue               *float64   `json:"freight_value"`
	PaymentValue               *float64   `json:"payment_value"`
	Revenue                    *float64   `json:"revenue"`
	DeliveryTimeDays           *int       `json:"delivery_time"`
	Month                      *Month     `json:"month"`
	Year                       *int       `json:"year"`
}

type RevenueByKey struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type MonthlyOrders struct {
	Month  Month `json:"month"`
	Orders int   `json:"orders"`
}

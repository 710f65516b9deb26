package models

import "time"

// Order is one row of the orders table. Date columns are nil when the source
// value is missing or cannot be parsed.
type Order struct {
	OrderID               string
	CustomerID            string
	Status                string
	PurchaseTimestamp     *time.Time
	ApprovedAt            *time.Time
	DeliveredCarrierDate  *time.Time
	DeliveredCustomerDate *time.Time
	EstimatedDeliveryDate *time.Time
}

type Customer struct {
	CustomerID       string
	CustomerUniqueID string
	ZipCodePrefix    string
	City             string
	State            string
}

type OrderItem struct {
	OrderID      string
	ItemID       string
	ProductID    string
	SellerID     string
	Price        *float64
	FreightValue *float64
}

type Payment struct {
	OrderID      string
	Sequential   string
	Type         string
	Installments string
	Value        *float64
}

type Product struct {
	ProductID    string
	CategoryName string
}

type CategoryTranslation struct {
	CategoryName        string
	CategoryNameEnglish string
}

// Dataset is the typed view of the tables the fact builder consumes.
type Dataset struct {
	Orders       []Order
	Customers    []Customer
	Items        []OrderItem
	Payments     []Payment
	Products     []Product
	Translations []CategoryTranslation
}

// Float returns a pointer to v, for building nullable columns.
func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}

func Time(t time.Time) *time.Time {
	return &t
}

package models

import "time"

type Segment string

const (
	SegmentVIP       Segment = "VIP"
	SegmentLoyal     Segment = "Loyal"
	SegmentNew       Segment = "New"
	SegmentSleeping  Segment = "Sleeping"
	SegmentPotential Segment = "Potential"
)

// Segments lists every segment in rule order.
var Segments = []Segment{SegmentVIP, SegmentLoyal, SegmentNew, SegmentSleeping, SegmentPotential}

type RFMRecord struct {
	CustomerID   string    `json:"customer_id"`
	LastPurchase time.Time `json:"last_purchase"`
	RecencyDays  int       `json:"Recency"`
	Frequency    int       `json:"Frequency"`
	Monetary     float64   `json:"Monetary"`
	RScore       int       `json:"R_score"`
	FScore       int       `json:"F_score"`
	MScore       int       `json:"M_score"`
	RFMScore     string    `json:"RFM_score"`
	Segment      Segment   `json:"Segment"`
}

type SegmentSummary struct {
	Segment        Segment `json:"segment"`
	Customers      int     `json:"customers"`
	Monetary       float64 `json:"monetary"`
	AvgFrequency   float64 `json:"avg_frequency"`
	AvgRecencyDays float64 `json:"avg_recency_days"`
}

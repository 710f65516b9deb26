// Package rfm scores customers by recency, frequency and monetary value and
// assigns them to segments.
package rfm

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"ecommerce-analytics/internal/models"
)

type Options struct {
	// ReferenceDate is the point recency is measured from. The zero value
	// means the latest purchase in the facts.
	ReferenceDate time.Time
	Binning       Binning
}

type Result struct {
	Records       []models.RFMRecord
	ReferenceDate time.Time
	// UndatedCustomers have no order with a purchase timestamp and get no
	// record.
	UndatedCustomers int
}

type customerMetrics struct {
	id       string
	last     *time.Time
	orders   map[string]struct{}
	monetary float64
}

// LatestPurchase is the maximum purchase timestamp across facts.
func LatestPurchase(facts []models.OrderFact) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, f := range facts {
		if f.PurchaseTimestamp == nil {
			continue
		}
		if !found || f.PurchaseTimestamp.After(latest) {
			latest = *f.PurchaseTimestamp
			found = true
		}
	}
	return latest, found
}

// Compute builds one RFM record per customer that has at least one dated
// order. Records are ordered by customer_id, which is also the tie-break
// order for quantile binning.
func Compute(facts []models.OrderFact, opts Options) (Result, error) {
	ref := opts.ReferenceDate
	if ref.IsZero() {
		// stays zero only when no fact is dated, and then no customer is scored
		ref, _ = LatestPurchase(facts)
	}

	groups := make(map[string]*customerMetrics)
	for _, f := range facts {
		c := groups[f.CustomerID]
		if c == nil {
			c = &customerMetrics{id: f.CustomerID, orders: make(map[string]struct{})}
			groups[f.CustomerID] = c
		}
		c.orders[f.OrderID] = struct{}{}
		if f.Revenue != nil {
			c.monetary += *f.Revenue
		}
		if f.PurchaseTimestamp != nil && (c.last == nil || f.PurchaseTimestamp.After(*c.last)) {
			ts := *f.PurchaseTimestamp
			c.last = &ts
		}
	}

	res := Result{ReferenceDate: ref}
	customers := make([]*customerMetrics, 0, len(groups))
	for _, c := range groups {
		// Recency is undefined without any purchase timestamp, so these
		// customers get no record. Callers report the count next to the
		// segment table and in the run stats.
		if c.last == nil {
			res.UndatedCustomers++
			continue
		}
		if c.last.After(ref) {
			return Result{}, fmt.Errorf("reference date %s precedes last purchase %s of customer %s",
				ref.Format(time.RFC3339), c.last.Format(time.RFC3339), c.id)
		}
		customers = append(customers, c)
	}
	if len(customers) == 0 {
		return res, nil
	}
	slices.SortFunc(customers, func(a, b *customerMetrics) int {
		return strings.Compare(a.id, b.id)
	})

	recency := make([]float64, len(customers))
	monetary := make([]float64, len(customers))
	records := make([]models.RFMRecord, len(customers))
	for i, c := range customers {
		days := int(math.Floor(ref.Sub(*c.last).Hours() / 24))
		records[i] = models.RFMRecord{
			CustomerID:   c.id,
			LastPurchase: *c.last,
			RecencyDays:  days,
			Frequency:    len(c.orders),
			Monetary:     c.monetary,
		}
		recency[i] = float64(days)
		monetary[i] = c.monetary
	}

	rBins, err := Tertiles(recency, opts.Binning)
	if err != nil {
		return Result{}, fmt.Errorf("recency score: %w", err)
	}
	mBins, err := Tertiles(monetary, opts.Binning)
	if err != nil {
		return Result{}, fmt.Errorf("monetary score: %w", err)
	}

	for i := range records {
		r := &records[i]
		r.RScore = tertiles - rBins[i]
		r.FScore = FScore(r.Frequency)
		r.MScore = mBins[i] + 1
		r.RFMScore = fmt.Sprintf("%d%d%d", r.RScore, r.FScore, r.MScore)
		r.Segment = Classify(r.RScore, r.FScore, r.MScore)
	}

	res.Records = records
	return res, nil
}

// Summarize aggregates records per segment, in rule order. Segments without
// customers are omitted.
func Summarize(records []models.RFMRecord) []models.SegmentSummary {
	bySegment := make(map[models.Segment]*models.SegmentSummary)
	for _, r := range records {
		s := bySegment[r.Segment]
		if s == nil {
			s = &models.SegmentSummary{Segment: r.Segment}
			bySegment[r.Segment] = s
		}
		s.Customers++
		s.Monetary += r.Monetary
		s.AvgFrequency += float64(r.Frequency)
		s.AvgRecencyDays += float64(r.RecencyDays)
	}

	out := make([]models.SegmentSummary, 0, len(bySegment))
	for _, seg := range models.Segments {
		s, ok := bySegment[seg]
		if !ok {
			continue
		}
		s.AvgFrequency /= float64(s.Customers)
		s.AvgRecencyDays /= float64(s.Customers)
		out = append(out, *s)
	}
	return out
}

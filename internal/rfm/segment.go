package rfm

import "ecommerce-analytics/internal/models"

// Rule maps a score triple to a segment. Rules are evaluated in order and the
// first match wins.
type Rule struct {
	Segment models.Segment
	Match   func(r, f, m int) bool
}

// Rules is the segment decision table. The last rule matches everything.
var Rules = []Rule{
	{models.SegmentVIP, func(r, f, m int) bool { return r == 3 && f == 3 && m == 3 }},
	{models.SegmentLoyal, func(r, f, m int) bool { return r == 3 && f >= 2 }},
	{models.SegmentNew, func(r, f, m int) bool { return r == 3 && f == 1 }},
	{models.SegmentSleeping, func(r, f, m int) bool { return r == 1 }},
	{models.SegmentPotential, func(r, f, m int) bool { return true }},
}

func Classify(r, f, m int) models.Segment {
	for _, rule := range Rules {
		if rule.Match(r, f, m) {
			return rule.Segment
		}
	}
	return models.SegmentPotential
}

// FScore buckets order counts: one-time, repeat and frequent customers.
func FScore(frequency int) int {
	switch {
	case frequency <= 1:
		return 1
	case frequency == 2:
		return 2
	default:
		return 3
	}
}

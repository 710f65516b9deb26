package rfm

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrDegenerateBins is returned when a distribution cannot be split into
// three non-empty, distinct quantile bins.
var ErrDegenerateBins = errors.New("degenerate quantile bins")

// Binning selects how tied values are split into tertiles.
type Binning string

const (
	// BinRankFirst ranks values ascending, breaking ties by input order, and
	// cuts the ranks into equal-population tertiles. It never fails for two
	// or more values.
	BinRankFirst Binning = "rank-first"
	// BinStrict cuts the observed values at their 1/3 and 2/3 quantiles and
	// fails when two bin edges coincide.
	BinStrict Binning = "strict"
)

func ParseBinning(s string) (Binning, error) {
	switch b := Binning(strings.ToLower(strings.TrimSpace(s))); b {
	case BinRankFirst, BinStrict:
		return b, nil
	case "":
		return BinRankFirst, nil
	default:
		return "", fmt.Errorf("unknown binning %q, must be %q or %q", s, BinRankFirst, BinStrict)
	}
}

const tertiles = 3

// Tertiles assigns each value a bin in {0,1,2}, 0 holding the smallest
// values. Input order is the tie-break for BinRankFirst.
func Tertiles(values []float64, b Binning) ([]int, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations, got %d", ErrDegenerateBins, len(values))
	}

	switch b {
	case BinStrict:
		return strictTertiles(values)
	case BinRankFirst, "":
		r := ranks(values)
		return cut(r, quantileEdges(r)), nil
	default:
		return nil, fmt.Errorf("unknown binning %q", b)
	}
}

// ranks returns 1-based ranks; equal values are ranked in input order.
func ranks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		default:
			return 0
		}
	})

	out := make([]float64, len(values))
	for pos, idx := range order {
		out[idx] = float64(pos + 1)
	}
	return out
}

func strictTertiles(values []float64) ([]int, error) {
	edges := quantileEdges(values)
	for i := 1; i < len(edges); i++ {
		if edges[i] == edges[i-1] {
			return nil, fmt.Errorf("%w: bin edges %v are not unique", ErrDegenerateBins, edges)
		}
	}
	return cut(values, edges), nil
}

// quantileEdges returns the min, 1/3, 2/3 and max quantiles using linear
// interpolation between order statistics.
func quantileEdges(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	edges := make([]float64, tertiles+1)
	for i := range edges {
		edges[i] = quantile(sorted, float64(i)/tertiles)
	}
	return edges
}

func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// cut places values into right-closed bins; the lowest edge is included.
func cut(values, edges []float64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		switch {
		case v <= edges[1]:
			out[i] = 0
		case v <= edges[2]:
			out[i] = 1
		default:
			out[i] = 2
		}
	}
	return out
}

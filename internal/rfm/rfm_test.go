package rfm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ecommerce-analytics/internal/models"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func order(customer, id, date string, revenue float64) models.OrderFact {
	return models.OrderFact{
		OrderID:           id,
		CustomerID:        customer,
		PurchaseTimestamp: day(date),
		Revenue:           models.Float(revenue),
	}
}

func sampleFacts() []models.OrderFact {
	return []models.OrderFact{
		order("c1", "o1", "2018-01-31", 100),
		order("c1", "o2", "2018-01-20", 50),
		order("c1", "o3", "2018-01-10", 2000),
		order("c2", "o4", "2018-01-25", 10),
		order("c3", "o5", "2017-12-01", 500),
		order("c3", "o6", "2017-11-01", 20),
		order("c4", "o7", "2017-06-01", 5),
		order("c5", "o8", "2018-01-30", 300),
		order("c5", "o9", "2018-01-01", 1),
		order("c6", "o10", "2017-01-01", 1000),
	}
}

func TestCompute_ScoresAndSegments(t *testing.T) {
	res, err := Compute(sampleFacts(), Options{})
	require.NoError(t, err)
	require.True(t, res.ReferenceDate.Equal(*day("2018-01-31")))
	require.Len(t, res.Records, 6)

	type want struct {
		recency, frequency int
		monetary           float64
		score              string
		segment            models.Segment
	}
	expected := map[string]want{
		"c1": {0, 3, 2150, "333", models.SegmentVIP},
		"c2": {6, 1, 10, "211", models.SegmentPotential},
		"c3": {61, 2, 520, "222", models.SegmentPotential},
		"c4": {244, 1, 5, "111", models.SegmentSleeping},
		"c5": {1, 2, 301, "322", models.SegmentLoyal},
		"c6": {395, 1, 1000, "113", models.SegmentSleeping},
	}

	for i, r := range res.Records {
		if i > 0 {
			require.Less(t, res.Records[i-1].CustomerID, r.CustomerID)
		}
		w, ok := expected[r.CustomerID]
		require.True(t, ok, r.CustomerID)
		require.Equal(t, w.recency, r.RecencyDays, r.CustomerID)
		require.Equal(t, w.frequency, r.Frequency, r.CustomerID)
		require.InDelta(t, w.monetary, r.Monetary, 1e-9, r.CustomerID)
		require.Equal(t, w.score, r.RFMScore, r.CustomerID)
		require.Equal(t, w.segment, r.Segment, r.CustomerID)
	}
}

func TestCompute_Invariants(t *testing.T) {
	res, err := Compute(sampleFacts(), Options{})
	require.NoError(t, err)

	for _, r := range res.Records {
		require.GreaterOrEqual(t, r.RecencyDays, 0)
		require.GreaterOrEqual(t, r.Frequency, 1)
		require.GreaterOrEqual(t, r.Monetary, 0.0)
		for _, s := range []int{r.RScore, r.FScore, r.MScore} {
			require.True(t, s >= 1 && s <= 3)
		}
		require.Len(t, r.RFMScore, 3)
		if r.RScore == 1 {
			require.Equal(t, models.SegmentSleeping, r.Segment)
		}
	}
}

func TestCompute_UndatedCustomersAreSkipped(t *testing.T) {
	facts := append(sampleFacts(), models.OrderFact{OrderID: "o11", CustomerID: "c7", Revenue: models.Float(5)})
	res, err := Compute(facts, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 6)
	require.Equal(t, 1, res.UndatedCustomers)
}

func TestCompute_NullRevenueCountsAsOrder(t *testing.T) {
	facts := append(sampleFacts(), models.OrderFact{OrderID: "o12", CustomerID: "c2", PurchaseTimestamp: day("2018-01-02")})
	res, err := Compute(facts, Options{})
	require.NoError(t, err)
	for _, r := range res.Records {
		if r.CustomerID == "c2" {
			require.Equal(t, 2, r.Frequency)
			require.InDelta(t, 10.0, r.Monetary, 1e-9)
		}
	}
}

func TestCompute_ReferenceDateBeforePurchaseFails(t *testing.T) {
	_, err := Compute(sampleFacts(), Options{ReferenceDate: *day("2017-12-31")})
	require.Error(t, err)
}

func TestCompute_ExplicitReferenceDate(t *testing.T) {
	res, err := Compute(sampleFacts(), Options{ReferenceDate: *day("2018-02-10")})
	require.NoError(t, err)
	require.Equal(t, 10, res.Records[0].RecencyDays)
}

func TestCompute_Empty(t *testing.T) {
	res, err := Compute(nil, Options{})
	require.NoError(t, err)
	require.Empty(t, res.Records)
}

func TestCompute_StrictBinningFailsOnTies(t *testing.T) {
	facts := []models.OrderFact{
		order("a", "1", "2018-01-01", 10),
		order("b", "2", "2018-01-01", 10),
		order("c", "3", "2018-01-01", 10),
		order("d", "4", "2018-01-01", 10),
	}
	_, err := Compute(facts, Options{Binning: BinStrict})
	require.ErrorIs(t, err, ErrDegenerateBins)

	res, err := Compute(facts, Options{Binning: BinRankFirst})
	require.NoError(t, err)
	require.Len(t, res.Records, 4)
}

func TestCompute_SingleCustomerIsDegenerate(t *testing.T) {
	_, err := Compute([]models.OrderFact{order("a", "1", "2018-01-01", 10)}, Options{})
	require.ErrorIs(t, err, ErrDegenerateBins)
}

func TestTertiles_RankFirstBreaksTiesByInputOrder(t *testing.T) {
	bins, err := Tertiles([]float64{7, 7, 7, 7, 7, 7}, BinRankFirst)
	require.NoError(t, err)
	require.Equal(t, []int{0, 0, 1, 1, 2, 2}, bins)

	bins, err = Tertiles([]float64{5, 1, 1, 9, 1, 3}, BinRankFirst)
	require.NoError(t, err)
	// ranks: 5→5, 1→1, 1→2, 9→6, 1→3, 3→4
	require.Equal(t, []int{2, 0, 0, 2, 1, 1}, bins)
}

func TestTertiles_EqualPopulation(t *testing.T) {
	values := make([]float64, 9)
	for i := range values {
		values[i] = float64(i % 2)
	}
	bins, err := Tertiles(values, BinRankFirst)
	require.NoError(t, err)

	counts := make([]int, 3)
	for _, b := range bins {
		counts[b]++
	}
	require.Equal(t, []int{3, 3, 3}, counts)
}

func TestTertiles_Strict(t *testing.T) {
	bins, err := Tertiles([]float64{6, 5, 4, 3, 2, 1}, BinStrict)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 1, 1, 0, 0}, bins)

	_, err = Tertiles([]float64{1, 1, 1, 2}, BinStrict)
	require.ErrorIs(t, err, ErrDegenerateBins)
}

func TestTertiles_TooFewValues(t *testing.T) {
	_, err := Tertiles([]float64{1}, BinRankFirst)
	require.ErrorIs(t, err, ErrDegenerateBins)

	bins, err := Tertiles([]float64{2, 1}, BinRankFirst)
	require.NoError(t, err)
	require.Equal(t, []int{2, 0}, bins)
}

func TestParseBinning(t *testing.T) {
	b, err := ParseBinning("STRICT")
	require.NoError(t, err)
	require.Equal(t, BinStrict, b)

	b, err = ParseBinning("")
	require.NoError(t, err)
	require.Equal(t, BinRankFirst, b)

	_, err = ParseBinning("dense")
	require.Error(t, err)
}

func TestClassify_TotalAndOrdered(t *testing.T) {
	reference := func(r, f, m int) models.Segment {
		if r == 3 && f == 3 && m == 3 {
			return models.SegmentVIP
		} else if r == 3 && f >= 2 {
			return models.SegmentLoyal
		} else if r == 3 && f == 1 {
			return models.SegmentNew
		} else if r == 1 {
			return models.SegmentSleeping
		}
		return models.SegmentPotential
	}

	for r := 1; r <= 3; r++ {
		for f := 1; f <= 3; f++ {
			for m := 1; m <= 3; m++ {
				require.Equal(t, reference(r, f, m), Classify(r, f, m), "scores %d%d%d", r, f, m)
			}
		}
	}

	require.Equal(t, models.SegmentVIP, Classify(3, 3, 3))
	require.Equal(t, models.SegmentLoyal, Classify(3, 3, 2))
	require.Equal(t, models.SegmentNew, Classify(3, 1, 3))
	require.Equal(t, models.SegmentSleeping, Classify(1, 3, 3))
	require.Equal(t, models.SegmentPotential, Classify(2, 3, 3))
}

func TestFScore(t *testing.T) {
	require.Equal(t, 1, FScore(1))
	require.Equal(t, 2, FScore(2))
	require.Equal(t, 3, FScore(3))
	require.Equal(t, 3, FScore(50))
}

func TestSummarize(t *testing.T) {
	res, err := Compute(sampleFacts(), Options{})
	require.NoError(t, err)

	summary := Summarize(res.Records)
	require.Len(t, summary, 4)
	require.Equal(t, models.SegmentVIP, summary[0].Segment)
	require.Equal(t, models.SegmentLoyal, summary[1].Segment)
	require.Equal(t, models.SegmentSleeping, summary[2].Segment)
	require.Equal(t, models.SegmentPotential, summary[3].Segment)

	sleeping := summary[2]
	require.Equal(t, 2, sleeping.Customers)
	require.InDelta(t, 1005.0, sleeping.Monetary, 1e-9)
	require.InDelta(t, 1.0, sleeping.AvgFrequency, 1e-9)
	require.InDelta(t, 319.5, sleeping.AvgRecencyDays, 1e-9)
}

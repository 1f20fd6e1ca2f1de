package metrics_test

import (
	"math"
	"testing"

	"github.com/influence-explorer/explorer/internal/gateway"
	"github.com/influence-explorer/explorer/internal/metrics"
)

func float64Pointer(value float64) *float64 {
	return &value
}

func int64Pointer(value int64) *int64 {
	return &value
}

func TestRankInvertsPercentile(t *testing.T) {
	for percentile := 0.0; percentile <= 100.0; percentile += 0.5 {
		value := percentile
		rank := metrics.Rank(&value)
		if math.Abs(rank-(100-value)) > 1e-9 {
			t.Fatalf("rank(%v) = %v", value, rank)
		}
		if rank < 0 || rank > 100 {
			t.Fatalf("rank(%v) out of range: %v", value, rank)
		}
	}
}

func TestRankLabels(t *testing.T) {
	testCases := []struct {
		name       string
		percentile *float64
		expected   string
	}{
		{name: "typical", percentile: float64Pointer(87.3), expected: "Top 12.7%"},
		{name: "top", percentile: float64Pointer(100), expected: "Top 0.0%"},
		{name: "bottom", percentile: float64Pointer(0), expected: "Top 100.0%"},
		{name: "missing", percentile: nil, expected: "Top 100.0%"},
		{name: "not a number", percentile: float64Pointer(math.NaN()), expected: "Top 100.0%"},
		{name: "above range", percentile: float64Pointer(120), expected: "Top 0.0%"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			if label := metrics.TopLabel(testCase.percentile); label != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, label)
			}
		})
	}
}

func TestCoverage(t *testing.T) {
	testCases := []struct {
		name      string
		inDataset int64
		total     int64
		expected  string
	}{
		{name: "forty percent", inDataset: 400, total: 1000, expected: "40.0"},
		{name: "zero total", inDataset: 12, total: 0, expected: "0.0"},
		{name: "negative total", inDataset: 12, total: -5, expected: "0.0"},
		{name: "one third", inDataset: 1, total: 3, expected: "33.3"},
		{name: "complete", inDataset: 7, total: 7, expected: "100.0"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			if formatted := metrics.FormatCoverage(testCase.inDataset, testCase.total); formatted != testCase.expected {
				t.Fatalf("expected %s, got %s", testCase.expected, formatted)
			}
		})
	}
}

func TestCoverageNeverDividesByZero(t *testing.T) {
	for _, followers := range []int64{0, 1, 1000, math.MaxInt32} {
		if coverage := metrics.Coverage(followers, 0); coverage != 0 {
			t.Fatalf("coverage(%d, 0) = %v", followers, coverage)
		}
	}
}

func TestCountDefaultsToZero(t *testing.T) {
	if metrics.Count(nil) != 0 || metrics.FormatCount(nil) != "0" {
		t.Fatalf("expected missing counters to default to 0")
	}
	if formatted := metrics.FormatCount(int64Pointer(1234567)); formatted != "1,234,567" {
		t.Fatalf("unexpected formatted count %q", formatted)
	}
}

func TestDeriveSummaryShowsRankOnlyWithScore(t *testing.T) {
	testCases := []struct {
		name          string
		score         *float64
		expectRank    bool
		expectedLabel string
	}{
		{name: "with score", score: float64Pointer(0.0042), expectRank: true, expectedLabel: "Top 12.7%"},
		{name: "missing score", score: nil, expectRank: false},
		{name: "zero score", score: float64Pointer(0), expectRank: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			view := metrics.DeriveSummary(gateway.AccountSummary{
				UserID:             "42",
				Username:           "alice",
				PagerankScore:      testCase.score,
				PagerankPercentile: float64Pointer(87.3),
			})
			if view.HasRank != testCase.expectRank || view.RankLabel != testCase.expectedLabel {
				t.Fatalf("unexpected rank %v %q", view.HasRank, view.RankLabel)
			}
			if view.AccountID != "42" || view.Followers != "0" {
				t.Fatalf("unexpected view %+v", view)
			}
		})
	}
}

func TestDeriveDetail(t *testing.T) {
	description := "  builder of things  "
	detail := gateway.AccountDetail{
		User: gateway.AccountProfile{
			Username:           "alice",
			Description:        &description,
			IsVerified:         true,
			FollowerCount:      int64Pointer(1000),
			FollowingCount:     int64Pointer(250),
			PagerankPercentile: float64Pointer(91.26),
		},
		NetworkStats: gateway.NetworkStats{
			FollowersInDataset:    int64Pointer(400),
			FollowingInDataset:    int64Pointer(80),
			ReciprocalConnections: int64Pointer(30),
		},
		TopFollowers: []gateway.AccountSummary{
			{Username: "bob", PagerankPercentile: float64Pointer(99)},
		},
	}

	view := metrics.DeriveDetail(detail)

	expectations := map[string][2]string{
		"coverage":    {view.CoverageLabel, "40.0%"},
		"rank":        {view.RankLabel, "Top 8.7%"},
		"percentile":  {view.PercentileLabel, "91.3%"},
		"followers":   {view.TotalFollowers, "1,000"},
		"following":   {view.TotalFollowing, "250"},
		"reciprocal":  {view.ReciprocalConnections, "30"},
		"description": {view.Description, "builder of things"},
	}
	for name, pair := range expectations {
		if pair[0] != pair[1] {
			t.Errorf("%s: expected %q, got %q", name, pair[1], pair[0])
		}
	}
	if len(view.TopFollowers) != 1 || !view.TopFollowers[0].HasRank || view.TopFollowers[0].RankLabel != "Top 1.0%" {
		t.Fatalf("unexpected follower rows %+v", view.TopFollowers)
	}
}

func TestDeriveDetailWithoutCounters(t *testing.T) {
	view := metrics.DeriveDetail(gateway.AccountDetail{User: gateway.AccountProfile{Username: "ghost"}})
	if view.CoverageLabel != "0.0%" || view.TotalFollowers != "0" || view.RankLabel != "Top 100.0%" {
		t.Fatalf("unexpected defaults %+v", view)
	}
	if view.TopFollowers == nil {
		t.Fatalf("expected empty follower list")
	}
}

func TestChronologicalOrdersOldestFirst(t *testing.T) {
	points := []gateway.HistoryPoint{
		{Date: "2024-03-01", PagerankPercentile: float64Pointer(80)},
		{Date: "unknown"},
		{Date: "Mon, 01 Jan 2024 00:00:00 GMT", PagerankScore: float64Pointer(0.1)},
		{Date: "2024-02-01T12:00:00Z"},
	}

	views := metrics.Chronological(points)

	expectedLabels := []string{"2024-01-01", "2024-02-01", "2024-03-01", "unknown"}
	if len(views) != len(expectedLabels) {
		t.Fatalf("expected %d views, got %d", len(expectedLabels), len(views))
	}
	for index, label := range expectedLabels {
		if views[index].DateLabel != label {
			t.Fatalf("position %d: expected %s, got %s", index, label, views[index].DateLabel)
		}
	}
	if views[0].Score != 0.1 || views[2].Percentile != 80 {
		t.Fatalf("unexpected values %+v", views)
	}
}

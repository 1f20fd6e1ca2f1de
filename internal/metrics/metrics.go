package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/influence-explorer/explorer/internal/gateway"
)

const (
	percentileMinimum    = 0.0
	percentileMaximum    = 100.0
	percentScale         = 100.0
	oneDecimalFormat     = "%.1f"
	percentLabelFormat   = "%s%%"
	topRankLabelFormat   = "Top %s%%"
	historyDateLayoutISO = "2006-01-02"
)

var historyDateLayouts = []string{
	historyDateLayoutISO,
	time.RFC3339,
	time.RFC1123,
	"2006-01-02 15:04:05",
}

// Rank inverts a percentile into the "top N%" rank shown to users.
// A missing percentile is treated as 0, so the rank is 100.
func Rank(percentile *float64) float64 {
	value := 0.0
	if percentile != nil && !math.IsNaN(*percentile) {
		value = *percentile
	}
	return clampPercent(percentScale - value)
}

// FormatRank renders Rank with one decimal.
func FormatRank(percentile *float64) string {
	return fmt.Sprintf(oneDecimalFormat, Rank(percentile))
}

// TopLabel renders the rank as "Top 12.7%".
func TopLabel(percentile *float64) string {
	return fmt.Sprintf(topRankLabelFormat, FormatRank(percentile))
}

// Coverage returns the share of an account's followers that are present in the dataset, in percent.
// A zero (or negative) follower total yields 0.
func Coverage(followersInDataset int64, totalFollowers int64) float64 {
	if totalFollowers <= 0 {
		return 0
	}
	return float64(followersInDataset) / float64(totalFollowers) * percentScale
}

// FormatCoverage renders Coverage with one decimal, e.g. "40.0".
func FormatCoverage(followersInDataset int64, totalFollowers int64) string {
	return fmt.Sprintf(oneDecimalFormat, Coverage(followersInDataset, totalFollowers))
}

// Count returns the counter value or 0 when the payload omitted it.
func Count(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}

// FormatCount renders a counter with thousands separators.
func FormatCount(value *int64) string {
	return humanize.Comma(Count(value))
}

// Percentile returns the percentile clamped to [0,100], 0 when absent.
func Percentile(percentile *float64) float64 {
	if percentile == nil || math.IsNaN(*percentile) {
		return 0
	}
	return clampPercent(*percentile)
}

func clampPercent(value float64) float64 {
	return math.Max(percentileMinimum, math.Min(percentileMaximum, value))
}

// SummaryView holds display values for one search result or follower row.
type SummaryView struct {
	Username      string
	Followers     string
	HasRank       bool
	RankLabel     string
	ProfileImage  string
	AccountID     string
	PagerankScore float64
}

// DeriveSummary computes the display values of an account summary row.
// The rank label is only present when the backend supplied a PageRank score.
func DeriveSummary(summary gateway.AccountSummary) SummaryView {
	view := SummaryView{
		Username:  summary.Username,
		Followers: FormatCount(summary.FollowerCount),
		AccountID: summary.UserID.String(),
	}
	if summary.ProfilePicURL != nil {
		view.ProfileImage = *summary.ProfilePicURL
	}
	if summary.PagerankScore != nil && *summary.PagerankScore != 0 {
		view.HasRank = true
		view.PagerankScore = *summary.PagerankScore
		view.RankLabel = TopLabel(summary.PagerankPercentile)
	}
	return view
}

// DetailView holds display values for a selected or analyzed account.
type DetailView struct {
	Username              string
	Description           string
	Verified              bool
	RankLabel             string
	TotalFollowers        string
	TotalFollowing        string
	FollowersInDataset    string
	FollowingInDataset    string
	ReciprocalConnections string
	CoverageLabel         string
	PercentileLabel       string
	TopFollowers          []SummaryView
}

// DeriveDetail computes every value the detail region shows.
func DeriveDetail(detail gateway.AccountDetail) DetailView {
	profile := detail.User
	stats := detail.NetworkStats
	view := DetailView{
		Username:              profile.Username,
		Verified:              profile.IsVerified,
		RankLabel:             TopLabel(profile.PagerankPercentile),
		TotalFollowers:        FormatCount(profile.FollowerCount),
		TotalFollowing:        FormatCount(profile.FollowingCount),
		FollowersInDataset:    FormatCount(stats.FollowersInDataset),
		FollowingInDataset:    FormatCount(stats.FollowingInDataset),
		ReciprocalConnections: FormatCount(stats.ReciprocalConnections),
		CoverageLabel:         fmt.Sprintf(percentLabelFormat, FormatCoverage(Count(stats.FollowersInDataset), Count(profile.FollowerCount))),
		PercentileLabel:       fmt.Sprintf(percentLabelFormat, fmt.Sprintf(oneDecimalFormat, Percentile(profile.PagerankPercentile))),
		TopFollowers:          make([]SummaryView, 0, len(detail.TopFollowers)),
	}
	if profile.Description != nil {
		view.Description = strings.TrimSpace(*profile.Description)
	}
	for _, follower := range detail.TopFollowers {
		view.TopFollowers = append(view.TopFollowers, deriveFollower(follower))
	}
	return view
}

// Follower rows always carry a rank label, even without a score.
func deriveFollower(follower gateway.AccountSummary) SummaryView {
	view := DeriveSummary(follower)
	view.HasRank = true
	view.RankLabel = TopLabel(follower.PagerankPercentile)
	return view
}

// HistoryView is one chronological history sample.
type HistoryView struct {
	Date       time.Time
	DateLabel  string
	Score      float64
	Percentile float64
}

// Chronological orders history points oldest first. Points whose date cannot be parsed keep
// their relative order and sort after the dated ones.
func Chronological(points []gateway.HistoryPoint) []HistoryView {
	views := make([]HistoryView, 0, len(points))
	for _, point := range points {
		view := HistoryView{
			DateLabel:  point.Date,
			Percentile: Percentile(point.PagerankPercentile),
		}
		if point.PagerankScore != nil {
			view.Score = *point.PagerankScore
		}
		if parsed, ok := parseHistoryDate(point.Date); ok {
			view.Date = parsed
			view.DateLabel = parsed.Format(historyDateLayoutISO)
		}
		views = append(views, view)
	}
	sort.SliceStable(views, func(left, right int) bool {
		leftDate, rightDate := views[left].Date, views[right].Date
		switch {
		case leftDate.IsZero():
			return false
		case rightDate.IsZero():
			return true
		default:
			return leftDate.Before(rightDate)
		}
	})
	return views
}

func parseHistoryDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range historyDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

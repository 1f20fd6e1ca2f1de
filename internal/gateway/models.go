package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const jsonNullLiteral = "null"

// AccountID is a backend account identifier. The backend emits it either as a JSON string or a number.
type AccountID string

// UnmarshalJSON accepts string, number and null encodings.
func (accountID *AccountID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == jsonNullLiteral {
		*accountID = ""
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*accountID = AccountID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("account id: %w", err)
	}
	*accountID = AccountID(number.String())
	return nil
}

// String returns the identifier text.
func (accountID AccountID) String() string {
	return string(accountID)
}

// AccountSummary is one row of a search result or of a top followers list.
type AccountSummary struct {
	UserID             AccountID `json:"user_id"`
	Username           string    `json:"username"`
	ProfilePicURL      *string   `json:"profile_pic_url,omitempty"`
	FollowerCount      *int64    `json:"follower_count,omitempty"`
	PagerankScore      *float64  `json:"pagerank_score,omitempty"`
	PagerankPercentile *float64  `json:"pagerank_percentile,omitempty"`
}

// AccountProfile describes the selected account itself.
type AccountProfile struct {
	UserID             AccountID `json:"user_id"`
	Username           string    `json:"username"`
	Description        *string   `json:"description,omitempty"`
	ProfilePicURL      *string   `json:"profile_pic_url,omitempty"`
	ProfileBannerURL   *string   `json:"profile_banner_url,omitempty"`
	IsVerified         bool      `json:"is_verified"`
	FollowerCount      *int64    `json:"follower_count,omitempty"`
	FollowingCount     *int64    `json:"following_count,omitempty"`
	PagerankScore      *float64  `json:"pagerank_score,omitempty"`
	PagerankPercentile *float64  `json:"pagerank_percentile,omitempty"`
}

// NetworkStats holds counts restricted to accounts present in the backend dataset.
type NetworkStats struct {
	FollowersInDataset    *int64 `json:"followers_in_dataset,omitempty"`
	FollowingInDataset    *int64 `json:"following_in_dataset,omitempty"`
	ReciprocalConnections *int64 `json:"reciprocal_connections,omitempty"`
}

// AccountDetail is the full profile of one selected or analyzed account.
type AccountDetail struct {
	User         AccountProfile   `json:"user"`
	NetworkStats NetworkStats     `json:"network_stats"`
	TopFollowers []AccountSummary `json:"top_followers"`
}

// HistoryPoint is one daily metrics sample.
type HistoryPoint struct {
	Date               string   `json:"date"`
	PagerankScore      *float64 `json:"pagerank_score,omitempty"`
	PagerankPercentile *float64 `json:"pagerank_percentile,omitempty"`
	FollowerCount      *int64   `json:"follower_count,omitempty"`
	FollowingCount     *int64   `json:"following_count,omitempty"`
}

// History is the payload of the history endpoint.
type History struct {
	UserID   AccountID      `json:"user_id,omitempty"`
	Username string         `json:"username,omitempty"`
	Points   []HistoryPoint `json:"history"`
}

// Profile combines an account detail with its metric history.
type Profile struct {
	Detail  AccountDetail
	History History
}

// MatchesIdentifier reports whether the identifier names this account, by id or case-insensitive username.
func (profile AccountProfile) MatchesIdentifier(identifier string) bool {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return false
	}
	return profile.UserID.String() == trimmed || strings.EqualFold(profile.Username, trimmed)
}

package fixtures

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/influence-explorer/explorer/internal/gateway"
)

const (
	searchResultLimit          = 10
	topFollowerLimit           = 10
	historyLimit               = 30
	historyDateLayout          = "2006-01-02"
	percentScale               = 100.0
	maximumEstimatedPercentile = 99.9
	minimumEstimatedPercentile = 1.0
	undeterminedPercentile     = 50.0
)

// Store answers backend queries against an in-memory dataset. Analysis promotes an external account
// into the indexed accounts, so the store is guarded by a read/write mutex.
type Store struct {
	mutex     sync.RWMutex
	accounts  []Account
	indexByID map[string]int
	external  []Account
	now       func() time.Time
}

// NewStore indexes the dataset. A nil now function defaults to time.Now.
func NewStore(dataset Dataset, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	store := &Store{
		accounts:  append([]Account{}, dataset.Accounts...),
		indexByID: make(map[string]int, len(dataset.Accounts)),
		external:  append([]Account{}, dataset.External...),
		now:       now,
	}
	for index, account := range store.accounts {
		store.indexByID[account.UserID.String()] = index
	}
	return store
}

// Search returns up to ten accounts whose username contains the query, case-insensitively, ordered
// by PageRank score with unscored accounts last. An empty query matches nothing.
func (store *Store) Search(query string) []gateway.AccountSummary {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	results := []gateway.AccountSummary{}
	if normalizedQuery == "" {
		return results
	}

	store.mutex.RLock()
	defer store.mutex.RUnlock()

	matches := make([]Account, 0, searchResultLimit)
	for _, account := range store.accounts {
		if strings.Contains(strings.ToLower(account.Username), normalizedQuery) {
			matches = append(matches, account)
		}
	}
	sortByScore(matches)
	if len(matches) > searchResultLimit {
		matches = matches[:searchResultLimit]
	}
	for _, account := range matches {
		results = append(results, account.summary())
	}
	return results
}

// Detail returns the profile, network statistics and top followers of an indexed account.
func (store *Store) Detail(identifier string) (gateway.AccountDetail, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	index, found := store.lookupLocked(identifier)
	if !found {
		return gateway.AccountDetail{}, false
	}
	return store.detailLocked(index), true
}

// History returns up to thirty daily samples of an indexed account, newest first.
func (store *Store) History(identifier string) (gateway.History, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	index, found := store.lookupLocked(identifier)
	if !found {
		return gateway.History{}, false
	}
	account := store.accounts[index]
	points := append([]gateway.HistoryPoint{}, account.History...)
	sort.SliceStable(points, func(left, right int) bool {
		return points[left].Date > points[right].Date
	})
	if len(points) > historyLimit {
		points = points[:historyLimit]
	}
	return gateway.History{UserID: account.UserID, Username: account.Username, Points: points}, true
}

// Analyze returns the detail of an indexed account. An external account is scored from the
// in-dataset followers, recorded with a history sample for today and indexed first.
func (store *Store) Analyze(identifier string) (gateway.AccountDetail, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if index, found := store.lookupLocked(identifier); found {
		return store.detailLocked(index), true
	}

	externalIndex := -1
	for index, account := range store.external {
		if account.MatchesIdentifier(identifier) {
			externalIndex = index
			break
		}
	}
	if externalIndex < 0 {
		return gateway.AccountDetail{}, false
	}

	account := store.external[externalIndex]
	store.external = append(store.external[:externalIndex], store.external[externalIndex+1:]...)

	score := 0.0
	for _, followerID := range account.Followers {
		if followerIndex, exists := store.indexByID[followerID.String()]; exists {
			if followerScore, scored := store.accounts[followerIndex].score(); scored {
				score += followerScore
			}
		}
	}
	percentile := store.estimatePercentileLocked(score)
	account.PagerankScore = &score
	account.PagerankPercentile = &percentile
	account.History = append(account.History, gateway.HistoryPoint{
		Date:               store.now().UTC().Format(historyDateLayout),
		PagerankScore:      account.PagerankScore,
		PagerankPercentile: account.PagerankPercentile,
		FollowerCount:      account.FollowerCount,
		FollowingCount:     account.FollowingCount,
	})

	store.accounts = append(store.accounts, account)
	store.indexByID[account.UserID.String()] = len(store.accounts) - 1
	return store.detailLocked(len(store.accounts) - 1), true
}

func (store *Store) lookupLocked(identifier string) (int, bool) {
	if index, exists := store.indexByID[identifier]; exists {
		return index, true
	}
	for index, account := range store.accounts {
		if strings.EqualFold(account.Username, identifier) {
			return index, true
		}
	}
	return 0, false
}

func (store *Store) detailLocked(index int) gateway.AccountDetail {
	account := store.accounts[index]

	followerIDs := make(map[string]struct{}, len(account.Followers))
	followers := make([]Account, 0, len(account.Followers))
	for _, followerID := range account.Followers {
		followerIDs[followerID.String()] = struct{}{}
		if followerIndex, exists := store.indexByID[followerID.String()]; exists {
			followers = append(followers, store.accounts[followerIndex])
		}
	}

	var followingInDataset, reciprocal int64
	for _, followingID := range account.Following {
		if _, exists := store.indexByID[followingID.String()]; exists {
			followingInDataset++
		}
		if _, followsBack := followerIDs[followingID.String()]; followsBack {
			reciprocal++
		}
	}
	followersInDataset := int64(len(followers))

	sortByScore(followers)
	if len(followers) > topFollowerLimit {
		followers = followers[:topFollowerLimit]
	}
	topFollowers := make([]gateway.AccountSummary, 0, len(followers))
	for _, follower := range followers {
		topFollowers = append(topFollowers, follower.summary())
	}

	return gateway.AccountDetail{
		User: account.AccountProfile,
		NetworkStats: gateway.NetworkStats{
			FollowersInDataset:    &followersInDataset,
			FollowingInDataset:    &followingInDataset,
			ReciprocalConnections: &reciprocal,
		},
		TopFollowers: topFollowers,
	}
}

// estimatePercentileLocked places a score within the distribution of positive scores in the dataset.
func (store *Store) estimatePercentileLocked(score float64) float64 {
	var scored, below int
	for _, account := range store.accounts {
		accountScore, ok := account.score()
		if !ok || accountScore <= 0 {
			continue
		}
		scored++
		if accountScore <= score {
			below++
		}
	}
	if scored == 0 {
		return undeterminedPercentile
	}
	percentile := float64(below) / float64(scored) * percentScale
	if percentile < minimumEstimatedPercentile {
		return minimumEstimatedPercentile
	}
	if percentile > maximumEstimatedPercentile {
		return maximumEstimatedPercentile
	}
	return percentile
}

func sortByScore(accounts []Account) {
	sort.SliceStable(accounts, func(left, right int) bool {
		leftScore, leftScored := accounts[left].score()
		rightScore, rightScored := accounts[right].score()
		switch {
		case !leftScored:
			return false
		case !rightScored:
			return true
		default:
			return leftScore > rightScore
		}
	})
}

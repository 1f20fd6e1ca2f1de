package fixtures

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/influence-explorer/explorer/internal/gateway"
)

const (
	errMessageReadDataset      = "read dataset"
	errMessageDecodeDataset    = "decode dataset"
	errMessageDuplicateAccount = "duplicate account"
	errMessageMissingAccountID = "account without user_id"
)

// Account is one dataset entry: the profile plus its in-dataset graph edges and daily metrics.
type Account struct {
	gateway.AccountProfile
	Followers []gateway.AccountID    `json:"followers,omitempty"`
	Following []gateway.AccountID    `json:"following,omitempty"`
	History   []gateway.HistoryPoint `json:"history,omitempty"`
}

// Dataset is the document served by the fixture backend. Accounts are indexed and searchable;
// External accounts only become visible once they are analyzed.
type Dataset struct {
	Accounts []Account `json:"accounts"`
	External []Account `json:"external,omitempty"`
}

//go:embed sample.json
var sampleDataset []byte

// SampleDataset returns the small dataset bundled with the fixture backend.
func SampleDataset() (Dataset, error) {
	return DecodeDataset(sampleDataset)
}

// LoadDataset reads a dataset document from disk.
func LoadDataset(path string) (Dataset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", errMessageReadDataset, err)
	}
	return DecodeDataset(content)
}

// DecodeDataset parses and validates a dataset document.
func DecodeDataset(content []byte) (Dataset, error) {
	var dataset Dataset
	if err := json.Unmarshal(content, &dataset); err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", errMessageDecodeDataset, err)
	}
	if err := dataset.validate(); err != nil {
		return Dataset{}, err
	}
	return dataset, nil
}

func (dataset Dataset) validate() error {
	seen := make(map[string]struct{}, len(dataset.Accounts)+len(dataset.External))
	for _, group := range [][]Account{dataset.Accounts, dataset.External} {
		for _, account := range group {
			accountID := strings.TrimSpace(account.UserID.String())
			if accountID == "" {
				return fmt.Errorf("%s: %s", errMessageMissingAccountID, account.Username)
			}
			if _, exists := seen[accountID]; exists {
				return fmt.Errorf("%s: %s", errMessageDuplicateAccount, accountID)
			}
			seen[accountID] = struct{}{}
		}
	}
	return nil
}

func (account Account) summary() gateway.AccountSummary {
	return gateway.AccountSummary{
		UserID:             account.UserID,
		Username:           account.Username,
		ProfilePicURL:      account.ProfilePicURL,
		FollowerCount:      account.FollowerCount,
		PagerankScore:      account.PagerankScore,
		PagerankPercentile: account.PagerankPercentile,
	}
}

func (account Account) score() (float64, bool) {
	if account.PagerankScore == nil {
		return 0, false
	}
	return *account.PagerankScore, true
}

package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/influence-explorer/explorer/internal/gateway"
)

const (
	searchResponseBody   = `[{"user_id":"1","username":"alice","follower_count":1000,"pagerank_score":0.02,"pagerank_percentile":87.3},{"user_id":2,"username":"alicia","follower_count":null}]`
	detailResponseBody   = `{"user":{"user_id":"1","username":"alice","follower_count":1000,"following_count":12,"is_verified":true,"pagerank_percentile":87.3},"network_stats":{"followers_in_dataset":400,"following_in_dataset":5,"reciprocal_connections":3},"top_followers":[{"user_id":"7","username":"bob","follower_count":10,"pagerank_percentile":50}]}`
	historyResponseBody  = `{"user_id":"1","username":"alice","history":[{"date":"2024-01-02","pagerank_score":0.2,"pagerank_percentile":80},{"date":"2024-01-01","pagerank_score":0.1,"pagerank_percentile":70}]}`
	notFoundResponseBody = `{"error": "User not found"}`
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*gateway.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := gateway.NewClient(gateway.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestSearchAccounts(t *testing.T) {
	var receivedQuery string
	client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/search" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		receivedQuery = request.URL.Query().Get("q")
		if request.Header.Get("X-Request-ID") == "" {
			t.Errorf("expected request id header")
		}
		_, _ = writer.Write([]byte(searchResponseBody))
	})

	accounts, err := client.SearchAccounts(context.Background(), "al ice&x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedQuery != "al ice&x" {
		t.Fatalf("expected query to round-trip, got %q", receivedQuery)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Username != "alice" || accounts[1].Username != "alicia" {
		t.Fatalf("expected backend order to be preserved: %+v", accounts)
	}
	if accounts[1].UserID.String() != "2" {
		t.Fatalf("expected numeric id to decode, got %q", accounts[1].UserID)
	}
	if accounts[1].FollowerCount != nil {
		t.Fatalf("expected null follower count to stay nil")
	}
}

func TestSearchAccountsEmptyResult(t *testing.T) {
	client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`[]`))
	})
	accounts, err := client.SearchAccounts(context.Background(), "zzz_nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts == nil || len(accounts) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", accounts)
	}
}

func TestFetchAccountPaths(t *testing.T) {
	testCases := []struct {
		name         string
		call         func(client *gateway.Client) (gateway.AccountDetail, error)
		expectedPath string
	}{
		{
			name: "fetch user",
			call: func(client *gateway.Client) (gateway.AccountDetail, error) {
				return client.FetchAccount(context.Background(), "Alice")
			},
			expectedPath: "/api/user/Alice",
		},
		{
			name: "analyze user",
			call: func(client *gateway.Client) (gateway.AccountDetail, error) {
				return client.AnalyzeAccount(context.Background(), "zzz_nonexistent")
			},
			expectedPath: "/api/user/zzz_nonexistent/analyze",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			var receivedPath string
			client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
				receivedPath = request.URL.Path
				_, _ = writer.Write([]byte(detailResponseBody))
			})
			detail, err := testCase.call(client)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if receivedPath != testCase.expectedPath {
				t.Fatalf("expected path %s, got %s", testCase.expectedPath, receivedPath)
			}
			if detail.User.Username != "alice" || *detail.NetworkStats.FollowersInDataset != 400 {
				t.Fatalf("unexpected detail: %+v", detail)
			}
			if len(detail.TopFollowers) != 1 || detail.TopFollowers[0].Username != "bob" {
				t.Fatalf("unexpected followers: %+v", detail.TopFollowers)
			}
		})
	}
}

func TestCustomAnalyzePathFormat(t *testing.T) {
	var receivedPath string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		receivedPath = request.URL.Path
		_, _ = writer.Write([]byte(detailResponseBody))
	}))
	t.Cleanup(server.Close)

	client, err := gateway.NewClient(gateway.Config{BaseURL: server.URL + "/", AnalyzePathFormat: "/api/analyze/%s"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.AnalyzeAccount(context.Background(), "carol"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedPath != "/api/analyze/carol" {
		t.Fatalf("unexpected path %s", receivedPath)
	}
}

func TestNewClientRejectsInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name          string
		configuration gateway.Config
	}{
		{name: "relative base url", configuration: gateway.Config{BaseURL: "localhost"}},
		{name: "analyze format without verb", configuration: gateway.Config{AnalyzePathFormat: "/api/analyze"}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := gateway.NewClient(testCase.configuration); err == nil {
				t.Fatalf("expected configuration error")
			}
		})
	}
}

func TestRemoteErrorsCarryBodyMessage(t *testing.T) {
	testCases := []struct {
		name            string
		statusCode      int
		body            string
		expectedMessage string
	}{
		{name: "json error field", statusCode: http.StatusNotFound, body: notFoundResponseBody, expectedMessage: "User not found"},
		{name: "json message field", statusCode: http.StatusBadRequest, body: `{"message":"bad identifier"}`, expectedMessage: "bad identifier"},
		{name: "plain text body", statusCode: http.StatusInternalServerError, body: "database locked\n", expectedMessage: "database locked"},
		{name: "empty body", statusCode: http.StatusBadGateway, body: "", expectedMessage: "request returned status 502"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(testCase.statusCode)
				_, _ = writer.Write([]byte(testCase.body))
			})
			_, err := client.FetchAccount(context.Background(), "alice")
			var remoteError *gateway.RemoteError
			if !errors.As(err, &remoteError) {
				t.Fatalf("expected remote error, got %v", err)
			}
			if remoteError.StatusCode != testCase.statusCode {
				t.Fatalf("expected status %d, got %d", testCase.statusCode, remoteError.StatusCode)
			}
			if remoteError.Message() != testCase.expectedMessage {
				t.Fatalf("expected message %q, got %q", testCase.expectedMessage, remoteError.Message())
			}
			if !strings.Contains(err.Error(), testCase.expectedMessage) {
				t.Fatalf("expected error text to include message, got %q", err.Error())
			}
		})
	}
}

func TestRemoteErrorTruncatesOnCharacterBoundaries(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		expectedLength int
	}{
		{name: "multibyte body", body: strings.Repeat("é", 250), expectedLength: 200},
		{name: "mixed body", body: "x" + strings.Repeat("世", 300), expectedLength: 200},
		{name: "short multibyte body", body: strings.Repeat("ü", 10), expectedLength: 10},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			remoteError := &gateway.RemoteError{Operation: "fetch user", StatusCode: http.StatusInternalServerError, Body: testCase.body}
			message := remoteError.Message()
			if !utf8.ValidString(message) {
				t.Fatalf("expected valid UTF-8, got %q", message)
			}
			if length := utf8.RuneCountInString(message); length != testCase.expectedLength {
				t.Fatalf("expected %d characters, got %d", testCase.expectedLength, length)
			}
			if !strings.HasPrefix(testCase.body, message) {
				t.Fatalf("expected message to be a prefix of the body, got %q", message)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client, err := gateway.NewClient(gateway.Config{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.SearchAccounts(context.Background(), "alice")
	var transportError *gateway.TransportError
	if !errors.As(err, &transportError) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchHistory(t *testing.T) {
	client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/user/alice/history" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = writer.Write([]byte(historyResponseBody))
	})
	history, err := client.FetchHistory(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history.Points) != 2 || history.Points[0].Date != "2024-01-02" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestFetchProfile(t *testing.T) {
	testCases := []struct {
		name          string
		historyStatus int
		expectError   bool
	}{
		{name: "combines detail and history", historyStatus: http.StatusOK},
		{name: "fails when history fails", historyStatus: http.StatusInternalServerError, expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
				switch request.URL.Path {
				case "/api/user/alice":
					_, _ = writer.Write([]byte(detailResponseBody))
				case "/api/user/alice/history":
					writer.WriteHeader(testCase.historyStatus)
					_, _ = writer.Write([]byte(historyResponseBody))
				default:
					writer.WriteHeader(http.StatusNotFound)
				}
			})
			profile, err := client.FetchProfile(context.Background(), "alice")
			if testCase.expectError {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if profile.Detail.User.Username != "alice" || len(profile.History.Points) != 2 {
				t.Fatalf("unexpected profile: %+v", profile)
			}
		})
	}
}

func TestConcurrentIdenticalRequestsShareRoundTrip(t *testing.T) {
	var requestCount atomic.Int32
	release := make(chan struct{})
	client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		requestCount.Add(1)
		<-release
		_, _ = writer.Write([]byte(detailResponseBody))
	})

	results := make(chan error, 2)
	for index := 0; index < 2; index++ {
		go func() {
			_, err := client.FetchAccount(context.Background(), "alice")
			results <- err
		}()
	}
	waitForCount(t, &requestCount, 1)
	close(release)
	for index := 0; index < 2; index++ {
		if err := <-results; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if requestCount.Load() > 2 {
		t.Fatalf("unexpected request count %d", requestCount.Load())
	}
}

func TestEmptyIdentifierRejected(t *testing.T) {
	client, _ := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		t.Errorf("no request expected")
	})
	if _, err := client.FetchAccount(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
}

func waitForCount(t *testing.T, counter *atomic.Int32, expected int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for counter.Load() < expected {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d requests", expected)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

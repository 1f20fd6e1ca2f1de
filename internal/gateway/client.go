package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the backend address used when no base URL is configured.
	DefaultBaseURL           = "http://localhost:8080"
	// DefaultAnalyzePathFormat is the analysis endpoint path; %s receives the escaped identifier.
	DefaultAnalyzePathFormat = "/api/user/%s/analyze"

	searchPath                   = "/api/search"
	searchQueryParameter         = "q"
	userPathFormat               = "/api/user/%s"
	historyPathFormat            = "/api/user/%s/history"
	userAgentHeader              = "User-Agent"
	acceptHeader                 = "Accept"
	requestIDHeader              = "X-Request-ID"
	jsonMediaType                = "application/json"
	defaultUserAgentValue        = "InfluenceExplorer/1.0"
	maxResponseBytes             = 8 * 1024 * 1024
	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	operationSearch              = "search"
	operationFetchUser           = "fetch user"
	operationFetchHistory        = "fetch history"
	operationAnalyzeUser         = "analyze user"
	errMessageParseBaseURL       = "parse base url"
	errMessageEmptyIdentifier    = "account identifier cannot be empty"
	errMessageDecodeResponse     = "decode response"
	errMessageInvalidPathFormat  = "analyze path format must contain exactly one %s verb"
	logMessageRequestStarted     = "backend request started"
	logMessageRequestCompleted   = "backend request completed"
	logMessageRequestFailed      = "backend request failed"
	logFieldOperation            = "operation"
	logFieldURL                  = "url"
	logFieldStatus               = "status"
	logFieldRequestID            = "request_id"
	logFieldElapsed              = "elapsed"
	pathFormatVerb               = "%s"
	successStatusRangeLowerBound = 200
	successStatusRangeUpperBound = 300
)

var errEmptyIdentifier = errors.New(errMessageEmptyIdentifier)

// Config customizes a Client instance.
type Config struct {
	BaseURL           string
	AnalyzePathFormat string
	UserAgent         string
	Client            *http.Client
	Logger            *zap.Logger
}

// Client wraps the four backend endpoints. Identical concurrent GETs share one round trip.
type Client struct {
	httpClient        *http.Client
	baseURL           *url.URL
	analyzePathFormat string
	userAgent         string
	logger            *zap.Logger
	flightGroup       singleflight.Group
}

type rawResponse struct {
	statusCode int
	body       []byte
}

// NewClient constructs a Client. No overall request timeout is applied; slow analysis calls are
// expected to run for several seconds.
func NewClient(configuration Config) (*Client, error) {
	baseURLString := strings.TrimSpace(configuration.BaseURL)
	if baseURLString == "" {
		baseURLString = DefaultBaseURL
	}
	parsedBaseURL, err := url.Parse(strings.TrimRight(baseURLString, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errMessageParseBaseURL, err)
	}
	if parsedBaseURL.Scheme == "" || parsedBaseURL.Host == "" {
		return nil, fmt.Errorf("%s: %q is not absolute", errMessageParseBaseURL, baseURLString)
	}

	analyzePathFormat := strings.TrimSpace(configuration.AnalyzePathFormat)
	if analyzePathFormat == "" {
		analyzePathFormat = DefaultAnalyzePathFormat
	}
	if strings.Count(analyzePathFormat, pathFormatVerb) != 1 {
		return nil, errors.New(errMessageInvalidPathFormat)
	}

	httpClient := configuration.Client
	if httpClient == nil {
		httpClient = &http.Client{Transport: defaultTransport()}
	}

	userAgent := strings.TrimSpace(configuration.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgentValue
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:        httpClient,
		baseURL:           parsedBaseURL,
		analyzePathFormat: analyzePathFormat,
		userAgent:         userAgent,
		logger:            logger,
	}, nil
}

// SearchAccounts returns the accounts matching the query in backend order.
func (client *Client) SearchAccounts(ctx context.Context, query string) ([]AccountSummary, error) {
	requestURL := client.endpoint(searchPath) + "?" + url.Values{searchQueryParameter: []string{query}}.Encode()

	var accounts []AccountSummary
	if err := client.getJSON(ctx, operationSearch, requestURL, &accounts); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []AccountSummary{}
	}
	return accounts, nil
}

// FetchAccount loads the detail of an account present in the dataset.
func (client *Client) FetchAccount(ctx context.Context, identifier string) (AccountDetail, error) {
	return client.fetchDetail(ctx, operationFetchUser, userPathFormat, identifier)
}

// AnalyzeAccount triggers the on-demand analysis of an account absent from the dataset.
func (client *Client) AnalyzeAccount(ctx context.Context, identifier string) (AccountDetail, error) {
	return client.fetchDetail(ctx, operationAnalyzeUser, client.analyzePathFormat, identifier)
}

// FetchHistory loads the daily metric history of an account.
func (client *Client) FetchHistory(ctx context.Context, identifier string) (History, error) {
	if identifier == "" {
		return History{}, errEmptyIdentifier
	}
	requestURL := client.endpoint(fmt.Sprintf(historyPathFormat, url.PathEscape(identifier)))
	var history History
	if err := client.getJSON(ctx, operationFetchHistory, requestURL, &history); err != nil {
		return History{}, err
	}
	return history, nil
}

// FetchProfile loads the detail and the history of an account concurrently. It fails when either fails.
func (client *Client) FetchProfile(ctx context.Context, identifier string) (Profile, error) {
	var profile Profile
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		detail, err := client.FetchAccount(groupCtx, identifier)
		profile.Detail = detail
		return err
	})
	group.Go(func() error {
		history, err := client.FetchHistory(groupCtx, identifier)
		profile.History = history
		return err
	})
	if err := group.Wait(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (client *Client) fetchDetail(ctx context.Context, operation string, pathFormat string, identifier string) (AccountDetail, error) {
	if identifier == "" {
		return AccountDetail{}, errEmptyIdentifier
	}
	requestURL := client.endpoint(fmt.Sprintf(pathFormat, url.PathEscape(identifier)))
	var detail AccountDetail
	if err := client.getJSON(ctx, operation, requestURL, &detail); err != nil {
		return AccountDetail{}, err
	}
	return detail, nil
}

func (client *Client) endpoint(escapedPath string) string {
	return client.baseURL.String() + escapedPath
}

func (client *Client) getJSON(ctx context.Context, operation string, requestURL string, target any) error {
	resultChannel := client.flightGroup.DoChan(requestURL, func() (interface{}, error) {
		return client.roundTrip(ctx, operation, requestURL)
	})

	var response rawResponse
	select {
	case <-ctx.Done():
		return &TransportError{Operation: operation, Err: ctx.Err()}
	case result := <-resultChannel:
		if result.Err != nil {
			return result.Err
		}
		response, _ = result.Val.(rawResponse)
	}

	if response.statusCode < successStatusRangeLowerBound || response.statusCode >= successStatusRangeUpperBound {
		return &RemoteError{Operation: operation, StatusCode: response.statusCode, Body: string(response.body)}
	}
	if err := json.Unmarshal(response.body, target); err != nil {
		return fmt.Errorf("%s %s: %w", operation, errMessageDecodeResponse, err)
	}
	return nil
}

func (client *Client) roundTrip(ctx context.Context, operation string, requestURL string) (rawResponse, error) {
	requestID := uuid.NewString()
	logger := client.logger.With(
		zap.String(logFieldOperation, operation),
		zap.String(logFieldURL, requestURL),
		zap.String(logFieldRequestID, requestID),
	)

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return rawResponse{}, &TransportError{Operation: operation, Err: err}
	}
	httpRequest.Header.Set(userAgentHeader, client.userAgent)
	httpRequest.Header.Set(acceptHeader, jsonMediaType)
	httpRequest.Header.Set(requestIDHeader, requestID)

	started := time.Now()
	logger.Debug(logMessageRequestStarted)
	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		logger.Warn(logMessageRequestFailed, zap.Error(err), zap.Duration(logFieldElapsed, time.Since(started)))
		return rawResponse{}, &TransportError{Operation: operation, Err: err}
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBytes))
	if err != nil {
		logger.Warn(logMessageRequestFailed, zap.Error(err), zap.Int(logFieldStatus, httpResponse.StatusCode))
		return rawResponse{}, &TransportError{Operation: operation, Err: err}
	}
	logger.Debug(logMessageRequestCompleted,
		zap.Int(logFieldStatus, httpResponse.StatusCode),
		zap.Duration(logFieldElapsed, time.Since(started)),
	)
	return rawResponse{statusCode: httpResponse.StatusCode, body: body}, nil
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        100,
		MaxConnsPerHost:     100,
	}
}

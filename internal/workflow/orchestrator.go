package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/influence-explorer/explorer/internal/escalation"
	"github.com/influence-explorer/explorer/internal/gateway"
)

const (
	errMessageMissingGateway    = "workflow gateway is required"
	messageSearchFailed         = "Failed to search users"
	messageUserLoadFailed       = "Failed to load user data"
	messageAnalysisFailed       = "Failed to analyze user"
	messageHistoryLoadFailed    = "Failed to load user history"
	logMessageSearchFailed      = "search failed"
	logMessageSearchCompleted   = "search completed"
	logMessageUserLoadFailed    = "user load failed"
	logMessageAnalysisFailed    = "analysis failed"
	logMessageHistoryLoadFailed = "history load failed"
	logMessageStaleResponse     = "discarding stale response"
	logMessageRequestStarted    = "workflow request started"
	logMessageDetailCommitted   = "account detail committed"
	logFieldAxis                = "axis"
	logFieldToken               = "token"
	logFieldQuery               = "query"
	logFieldIdentifier          = "identifier"
	logFieldResultCount         = "results"
	logFieldDetailRevision      = "revision"
	logFieldUsername            = "username"
)

var errMissingGateway = errors.New(errMessageMissingGateway)

// Gateway is the subset of the remote data gateway the workflow drives.
type Gateway interface {
	SearchAccounts(ctx context.Context, query string) ([]gateway.AccountSummary, error)
	FetchAccount(ctx context.Context, identifier string) (gateway.AccountDetail, error)
	AnalyzeAccount(ctx context.Context, identifier string) (gateway.AccountDetail, error)
	FetchHistory(ctx context.Context, identifier string) (gateway.History, error)
}

// Config configures an Orchestrator.
type Config struct {
	Gateway Gateway
	Timer   *escalation.Timer
	Logger  *zap.Logger
	// OnChange is invoked, without locks held, after every state change including escalation signal
	// changes. Call State to read the new snapshot.
	OnChange func()
}

// Orchestrator owns the search, selection, analysis and history axes. Every public method returns
// immediately; remote calls run on their own goroutines and commit only while their token is current.
type Orchestrator struct {
	gateway  Gateway
	timer    *escalation.Timer
	logger   *zap.Logger
	onChange func()

	ctx        context.Context
	cancel     context.CancelFunc
	inFlight   sync.WaitGroup
	mutex      sync.Mutex
	search     *axisTracker
	selection  *axisTracker
	analysis   *axisTracker
	historyRun *axisTracker

	query           string
	searchPerformed bool
	results         []gateway.AccountSummary
	searchError     *AxisError
	detail          *gateway.AccountDetail
	detailRevision  uint64
	userError       *AxisError
	analysisTarget  string
	analysisError   *AxisError
	historyFor      string
	history         []gateway.HistoryPoint
	historyError    *AxisError
}

// New constructs an Orchestrator in its initial idle state.
func New(configuration Config) (*Orchestrator, error) {
	if configuration.Gateway == nil {
		return nil, errMissingGateway
	}
	timer := configuration.Timer
	if timer == nil {
		timer = escalation.NewTimer(escalation.Config{})
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		gateway:    configuration.Gateway,
		timer:      timer,
		logger:     logger,
		onChange:   configuration.OnChange,
		ctx:        ctx,
		cancel:     cancel,
		search:     newAxisTracker(AxisSearch),
		selection:  newAxisTracker(AxisSelection),
		analysis:   newAxisTracker(AxisAnalysis),
		historyRun: newAxisTracker(AxisHistory),
		results:    []gateway.AccountSummary{},
	}, nil
}

// SubmitSearch searches for the trimmed query. Blank queries are ignored and false is returned.
// A submission clears the displayed account and the selection and analysis errors, and supersedes
// ongoing selections and analyses.
func (orchestrator *Orchestrator) SubmitSearch(query string) bool {
	trimmedQuery := strings.TrimSpace(query)
	if trimmedQuery == "" {
		return false
	}

	orchestrator.mutex.Lock()
	token := orchestrator.search.begin(nil)
	orchestrator.query = trimmedQuery
	orchestrator.searchPerformed = true
	orchestrator.searchError = nil
	orchestrator.detail = nil
	orchestrator.userError = nil
	orchestrator.analysisError = nil
	orchestrator.selection.supersede()
	orchestrator.analysis.supersede()
	orchestrator.analysisTarget = ""
	orchestrator.clearHistoryLocked()
	orchestrator.mutex.Unlock()

	orchestrator.logStart(AxisSearch, token, zap.String(logFieldQuery, trimmedQuery))
	orchestrator.notify()

	orchestrator.launch(func(ctx context.Context) {
		accounts, err := orchestrator.gateway.SearchAccounts(ctx, trimmedQuery)

		orchestrator.mutex.Lock()
		if !orchestrator.search.complete(token, err != nil) {
			orchestrator.mutex.Unlock()
			orchestrator.logStale(AxisSearch, token)
			return
		}
		if err != nil {
			orchestrator.results = []gateway.AccountSummary{}
			orchestrator.searchError = &AxisError{Kind: KindSearchFailed, Message: messageSearchFailed, Cause: err}
		} else {
			if accounts == nil {
				accounts = []gateway.AccountSummary{}
			}
			orchestrator.results = accounts
		}
		orchestrator.mutex.Unlock()

		if err != nil {
			orchestrator.logger.Warn(logMessageSearchFailed, zap.String(logFieldQuery, trimmedQuery), zap.Error(err))
		} else {
			orchestrator.logger.Debug(logMessageSearchCompleted, zap.String(logFieldQuery, trimmedQuery), zap.Int(logFieldResultCount, len(accounts)))
		}
		orchestrator.notify()
	})
	return true
}

// SelectAccount loads the detail of a search result or follower row. A failure keeps the previously
// displayed account.
func (orchestrator *Orchestrator) SelectAccount(identifier string) bool {
	if strings.TrimSpace(identifier) == "" {
		return false
	}

	operation := orchestrator.timer.Start(escalation.QuickOnly, orchestrator.notify)

	orchestrator.mutex.Lock()
	token := orchestrator.selection.begin(operation)
	orchestrator.userError = nil
	orchestrator.analysisError = nil
	orchestrator.searchError = nil
	orchestrator.analysis.supersede()
	orchestrator.analysisTarget = ""
	orchestrator.mutex.Unlock()

	orchestrator.logStart(AxisSelection, token, zap.String(logFieldIdentifier, identifier))
	orchestrator.notify()

	orchestrator.launch(func(ctx context.Context) {
		detail, err := orchestrator.gateway.FetchAccount(ctx, identifier)

		orchestrator.mutex.Lock()
		if !orchestrator.selection.complete(token, err != nil) {
			orchestrator.mutex.Unlock()
			orchestrator.logStale(AxisSelection, token)
			return
		}
		if err != nil {
			orchestrator.userError = newAxisError(KindUserLoadFailed, messageUserLoadFailed, err)
		} else {
			orchestrator.commitDetailLocked(detail)
		}
		orchestrator.mutex.Unlock()

		if err != nil {
			orchestrator.logger.Warn(logMessageUserLoadFailed, zap.String(logFieldIdentifier, identifier), zap.Error(err))
		} else {
			orchestrator.logCommit(detail)
		}
		orchestrator.notify()
	})
	return true
}

// SubmitAnalysis triggers the on-demand analysis of the trimmed username. Blank usernames are ignored.
// The analysis supersedes an in-flight selection so the detail region shows the latest request.
func (orchestrator *Orchestrator) SubmitAnalysis(username string) bool {
	trimmedUsername := strings.TrimSpace(username)
	if trimmedUsername == "" {
		return false
	}

	operation := orchestrator.timer.Start(escalation.QuickAndLong, orchestrator.notify)

	orchestrator.mutex.Lock()
	token := orchestrator.analysis.begin(operation)
	orchestrator.analysisTarget = trimmedUsername
	orchestrator.analysisError = nil
	orchestrator.searchError = nil
	orchestrator.selection.supersede()
	orchestrator.mutex.Unlock()

	orchestrator.logStart(AxisAnalysis, token, zap.String(logFieldUsername, trimmedUsername))
	orchestrator.notify()

	orchestrator.launch(func(ctx context.Context) {
		detail, err := orchestrator.gateway.AnalyzeAccount(ctx, trimmedUsername)

		orchestrator.mutex.Lock()
		if !orchestrator.analysis.complete(token, err != nil) {
			orchestrator.mutex.Unlock()
			orchestrator.logStale(AxisAnalysis, token)
			return
		}
		orchestrator.analysisTarget = ""
		if err != nil {
			orchestrator.analysisError = newAxisError(KindAnalysisFailed, messageAnalysisFailed, err)
		} else {
			orchestrator.commitDetailLocked(detail)
		}
		orchestrator.mutex.Unlock()

		if err != nil {
			orchestrator.logger.Warn(logMessageAnalysisFailed, zap.String(logFieldUsername, trimmedUsername), zap.Error(err))
		} else {
			orchestrator.logCommit(detail)
		}
		orchestrator.notify()
	})
	return true
}

// LoadHistory fetches the metric history of an account. History that belongs to another account is
// dropped when a new detail is committed.
func (orchestrator *Orchestrator) LoadHistory(identifier string) bool {
	trimmedIdentifier := strings.TrimSpace(identifier)
	if trimmedIdentifier == "" {
		return false
	}

	orchestrator.mutex.Lock()
	token := orchestrator.historyRun.begin(nil)
	orchestrator.historyFor = trimmedIdentifier
	orchestrator.history = nil
	orchestrator.historyError = nil
	orchestrator.mutex.Unlock()

	orchestrator.logStart(AxisHistory, token, zap.String(logFieldIdentifier, trimmedIdentifier))
	orchestrator.notify()

	orchestrator.launch(func(ctx context.Context) {
		history, err := orchestrator.gateway.FetchHistory(ctx, trimmedIdentifier)

		orchestrator.mutex.Lock()
		if !orchestrator.historyRun.complete(token, err != nil) {
			orchestrator.mutex.Unlock()
			orchestrator.logStale(AxisHistory, token)
			return
		}
		if err != nil {
			orchestrator.historyError = newAxisError(KindHistoryLoadFailed, messageHistoryLoadFailed, err)
		} else {
			orchestrator.history = history.Points
		}
		orchestrator.mutex.Unlock()

		if err != nil {
			orchestrator.logger.Warn(logMessageHistoryLoadFailed, zap.String(logFieldIdentifier, trimmedIdentifier), zap.Error(err))
		}
		orchestrator.notify()
	})
	return true
}

// State returns a snapshot of the workflow.
func (orchestrator *Orchestrator) State() State {
	orchestrator.mutex.Lock()
	defer orchestrator.mutex.Unlock()
	return State{
		Query:            orchestrator.query,
		SearchPerformed:  orchestrator.searchPerformed,
		Searching:        orchestrator.search.running(),
		Results:          orchestrator.results,
		SearchError:      orchestrator.searchError,
		Detail:           orchestrator.detail,
		DetailRevision:   orchestrator.detailRevision,
		LoadingUser:      orchestrator.selection.running(),
		UserError:        orchestrator.userError,
		SelectionSignals: orchestrator.selection.signals(),
		Analyzing:        orchestrator.analysis.running(),
		AnalysisTarget:   orchestrator.analysisTarget,
		AnalysisError:    orchestrator.analysisError,
		AnalysisSignals:  orchestrator.analysis.signals(),
		LoadingHistory:   orchestrator.historyRun.running(),
		HistoryFor:       orchestrator.historyFor,
		History:          orchestrator.history,
		HistoryError:     orchestrator.historyError,
	}
}

// Wait blocks until every launched call has returned.
func (orchestrator *Orchestrator) Wait() {
	orchestrator.inFlight.Wait()
}

// Close cancels the context shared by in-flight calls, settles escalation timers and waits for the
// calls to return.
func (orchestrator *Orchestrator) Close() {
	orchestrator.cancel()
	orchestrator.mutex.Lock()
	for _, tracker := range []*axisTracker{orchestrator.search, orchestrator.selection, orchestrator.analysis, orchestrator.historyRun} {
		tracker.operation.Settle()
	}
	orchestrator.mutex.Unlock()
	orchestrator.inFlight.Wait()
}

// commitDetailLocked replaces the displayed account wholesale.
func (orchestrator *Orchestrator) commitDetailLocked(detail gateway.AccountDetail) {
	committed := detail
	orchestrator.detail = &committed
	orchestrator.detailRevision++
	if orchestrator.historyFor != "" && !committed.User.MatchesIdentifier(orchestrator.historyFor) {
		orchestrator.clearHistoryLocked()
	}
}

func (orchestrator *Orchestrator) clearHistoryLocked() {
	orchestrator.historyRun.supersede()
	orchestrator.historyFor = ""
	orchestrator.history = nil
	orchestrator.historyError = nil
}

func (orchestrator *Orchestrator) launch(call func(ctx context.Context)) {
	orchestrator.inFlight.Add(1)
	go func() {
		defer orchestrator.inFlight.Done()
		call(orchestrator.ctx)
	}()
}

func (orchestrator *Orchestrator) notify() {
	if orchestrator.onChange != nil {
		orchestrator.onChange()
	}
}

func (orchestrator *Orchestrator) logStart(axis Axis, token uint64, fields ...zap.Field) {
	orchestrator.logger.Debug(logMessageRequestStarted, append([]zap.Field{zap.String(logFieldAxis, string(axis)), zap.Uint64(logFieldToken, token)}, fields...)...)
}

func (orchestrator *Orchestrator) logStale(axis Axis, token uint64) {
	orchestrator.logger.Debug(logMessageStaleResponse, zap.String(logFieldAxis, string(axis)), zap.Uint64(logFieldToken, token))
}

func (orchestrator *Orchestrator) logCommit(detail gateway.AccountDetail) {
	orchestrator.mutex.Lock()
	revision := orchestrator.detailRevision
	orchestrator.mutex.Unlock()
	orchestrator.logger.Info(logMessageDetailCommitted, zap.String(logFieldUsername, detail.User.Username), zap.Uint64(logFieldDetailRevision, revision))
}

func newAxisError(kind ErrorKind, fallbackMessage string, cause error) *AxisError {
	message := fallbackMessage
	if cause != nil && strings.TrimSpace(cause.Error()) != "" {
		message = cause.Error()
	}
	return &AxisError{Kind: kind, Message: message, Cause: cause}
}

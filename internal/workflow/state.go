package workflow

import (
	"github.com/influence-explorer/explorer/internal/escalation"
	"github.com/influence-explorer/explorer/internal/gateway"
)

// Axis names one independent region of the workflow.
type Axis string

const (
	AxisSearch    = Axis("search")
	AxisSelection = Axis("selection")
	AxisAnalysis  = Axis("analysis")
	AxisHistory   = Axis("history")
)

// ErrorKind classifies the failures surfaced to the presentation.
type ErrorKind string

const (
	KindSearchFailed      = ErrorKind("search_failed")
	KindUserLoadFailed    = ErrorKind("user_load_failed")
	KindAnalysisFailed    = ErrorKind("analysis_failed")
	KindHistoryLoadFailed = ErrorKind("history_load_failed")
)

// AxisError is the error shown next to one axis' region.
type AxisError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (axisError *AxisError) Error() string {
	return axisError.Message
}

func (axisError *AxisError) Unwrap() error {
	return axisError.Cause
}

// State is a snapshot of the workflow. Slices and the detail are replaced wholesale by the
// orchestrator and must be treated as read-only.
type State struct {
	Query           string
	SearchPerformed bool
	Searching       bool
	Results         []gateway.AccountSummary
	SearchError     *AxisError

	Detail         *gateway.AccountDetail
	DetailRevision uint64

	LoadingUser      bool
	UserError        *AxisError
	SelectionSignals escalation.Signals

	Analyzing       bool
	AnalysisTarget  string
	AnalysisError   *AxisError
	AnalysisSignals escalation.Signals

	LoadingHistory bool
	HistoryFor     string
	History        []gateway.HistoryPoint
	HistoryError   *AxisError
}

// NoResults reports whether a submitted search finished without matches.
func (state State) NoResults() bool {
	return state.SearchPerformed && !state.Searching && state.SearchError == nil && len(state.Results) == 0
}

// ManualAnalysisAvailable reports whether the manual analysis input should be offered.
func (state State) ManualAnalysisAvailable() bool {
	return state.NoResults()
}

// Busy reports whether any axis has a call in flight.
func (state State) Busy() bool {
	return state.Searching || state.LoadingUser || state.Analyzing || state.LoadingHistory
}

package workflow

import (
	"github.com/influence-explorer/explorer/internal/escalation"
)

const (
	axisStatusIdle      = axisStatus("idle")
	axisStatusRunning   = axisStatus("running")
	axisStatusCompleted = axisStatus("completed")
	axisStatusFailed    = axisStatus("failed")
)

// axisStatus represents the lifecycle state of one workflow axis.
type axisStatus string

// axisTracker hands out monotonically increasing request tokens for one axis and remembers which
// token is current. It is guarded by the orchestrator mutex.
type axisTracker struct {
	axis         Axis
	nextSequence uint64
	current      uint64
	status       axisStatus
	operation    *escalation.Operation
}

func newAxisTracker(axis Axis) *axisTracker {
	return &axisTracker{axis: axis, status: axisStatusIdle}
}

// begin registers a new request, superseding any in-flight one, and returns its token.
func (tracker *axisTracker) begin(operation *escalation.Operation) uint64 {
	tracker.operation.Settle()
	tracker.nextSequence++
	tracker.current = tracker.nextSequence
	tracker.status = axisStatusRunning
	tracker.operation = operation
	return tracker.current
}

// complete transitions the request to its terminal status. It returns false for a superseded token,
// in which case nothing changes.
func (tracker *axisTracker) complete(token uint64, failed bool) bool {
	if !tracker.isCurrent(token) {
		return false
	}
	tracker.current = 0
	if failed {
		tracker.status = axisStatusFailed
	} else {
		tracker.status = axisStatusCompleted
	}
	tracker.operation.Settle()
	tracker.operation = nil
	return true
}

// supersede makes any in-flight request stale without waiting for it.
func (tracker *axisTracker) supersede() {
	tracker.operation.Settle()
	tracker.operation = nil
	if tracker.current != 0 {
		tracker.nextSequence++
		tracker.current = 0
	}
	tracker.status = axisStatusIdle
}

func (tracker *axisTracker) isCurrent(token uint64) bool {
	return token != 0 && tracker.current == token
}

func (tracker *axisTracker) running() bool {
	return tracker.status == axisStatusRunning
}

func (tracker *axisTracker) signals() escalation.Signals {
	return tracker.operation.Signals()
}

// Package escalationtest provides a manually advanced clock for escalation tests.
package escalationtest

import (
	"sort"
	"sync"
	"time"

	"github.com/influence-explorer/explorer/internal/escalation"
)

// ManualClock fires scheduled callbacks only when Advance moves past their deadline.
type ManualClock struct {
	mutex   sync.Mutex
	now     time.Duration
	pending []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Duration
	callback func()
	stopped  bool
	fired    bool
}

var _ escalation.Clock = (*ManualClock)(nil)

// NewManualClock returns a clock positioned at zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc implements escalation.Clock.
func (clock *ManualClock) AfterFunc(delay time.Duration, callback func()) escalation.Stopper {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	timer := &manualTimer{clock: clock, deadline: clock.now + delay, callback: callback}
	clock.pending = append(clock.pending, timer)
	return timer
}

// Advance moves the clock forward and runs due callbacks in deadline order on the calling goroutine.
func (clock *ManualClock) Advance(delta time.Duration) {
	clock.mutex.Lock()
	clock.now += delta
	due := make([]*manualTimer, 0, len(clock.pending))
	remaining := clock.pending[:0]
	for _, timer := range clock.pending {
		switch {
		case timer.stopped || timer.fired:
		case timer.deadline <= clock.now:
			timer.fired = true
			due = append(due, timer)
		default:
			remaining = append(remaining, timer)
		}
	}
	clock.pending = remaining
	clock.mutex.Unlock()

	sort.SliceStable(due, func(left, right int) bool { return due[left].deadline < due[right].deadline })
	for _, timer := range due {
		timer.callback()
	}
}

// Pending returns the number of scheduled callbacks that have neither fired nor been stopped.
func (clock *ManualClock) Pending() int {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	count := 0
	for _, timer := range clock.pending {
		if !timer.stopped && !timer.fired {
			count++
		}
	}
	return count
}

func (timer *manualTimer) Stop() bool {
	timer.clock.mutex.Lock()
	defer timer.clock.mutex.Unlock()
	wasActive := !timer.stopped && !timer.fired
	timer.stopped = true
	return wasActive
}

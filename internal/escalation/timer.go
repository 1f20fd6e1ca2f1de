// Package escalation schedules the time-boxed loading signals shown while a remote call is in flight.
//
// An Operation owns two signals. The quick signal is raised when the operation starts and retracted
// after the quick delay whatever the outcome. The long signal is armed at start and raised only when
// the operation is still unsettled after the long delay. Settle retracts both and stops pending timers.
package escalation

import (
	"sync"
	"time"
)

const (
	// DefaultQuickDelay is how long the quick signal stays visible.
	DefaultQuickDelay = time.Second
	// DefaultLongDelay is how long an operation may run before the long signal is raised.
	DefaultLongDelay  = 4 * time.Second
)

// Tiers selects which signals an operation drives.
type Tiers int

const (
	// QuickOnly drives the quick signal only.
	QuickOnly Tiers = iota
	// QuickAndLong drives both signals.
	QuickAndLong
)

// Signals is the observable state of an operation's two signals.
type Signals struct {
	Quick bool
	Long  bool
}

// Stopper cancels a scheduled callback.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. It exists so tests can advance time by hand.
type Clock interface {
	AfterFunc(delay time.Duration, callback func()) Stopper
}

// SystemClock schedules callbacks with time.AfterFunc.
type SystemClock struct{}

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(delay time.Duration, callback func()) Stopper {
	return time.AfterFunc(delay, callback)
}

// Config customizes a Timer.
type Config struct {
	QuickDelay time.Duration
	LongDelay  time.Duration
	Clock      Clock
}

// Timer starts escalation operations with fixed delays.
type Timer struct {
	quickDelay time.Duration
	longDelay  time.Duration
	clock      Clock
}

// NewTimer constructs a Timer, applying defaults for unset values.
func NewTimer(configuration Config) *Timer {
	quickDelay := configuration.QuickDelay
	if quickDelay <= 0 {
		quickDelay = DefaultQuickDelay
	}
	longDelay := configuration.LongDelay
	if longDelay <= 0 {
		longDelay = DefaultLongDelay
	}
	clock := configuration.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timer{quickDelay: quickDelay, longDelay: longDelay, clock: clock}
}

// QuickDelay returns the configured quick delay.
func (timer *Timer) QuickDelay() time.Duration {
	return timer.quickDelay
}

// LongDelay returns the configured long delay.
func (timer *Timer) LongDelay() time.Duration {
	return timer.longDelay
}

// Start begins an operation with the quick signal raised. onChange runs on the clock's goroutine
// whenever a timer changes a signal; it is never called from Start or Settle.
func (timer *Timer) Start(tiers Tiers, onChange func()) *Operation {
	operation := &Operation{onChange: onChange}
	operation.signals.Quick = true

	operation.mutex.Lock()
	defer operation.mutex.Unlock()
	operation.quickStopper = timer.clock.AfterFunc(timer.quickDelay, operation.retractQuick)
	if tiers == QuickAndLong {
		operation.longStopper = timer.clock.AfterFunc(timer.longDelay, operation.raiseLong)
	}
	return operation
}

// Operation is the escalation state of one in-flight call.
type Operation struct {
	mutex        sync.Mutex
	signals      Signals
	settled      bool
	quickStopper Stopper
	longStopper  Stopper
	onChange     func()
}

// Signals returns the current signal state. A nil operation has no signals.
func (operation *Operation) Signals() Signals {
	if operation == nil {
		return Signals{}
	}
	operation.mutex.Lock()
	defer operation.mutex.Unlock()
	return operation.signals
}

// Settled reports whether Settle has been called.
func (operation *Operation) Settled() bool {
	if operation == nil {
		return true
	}
	operation.mutex.Lock()
	defer operation.mutex.Unlock()
	return operation.settled
}

// Settle retracts both signals and stops pending timers. It is safe to call more than once.
func (operation *Operation) Settle() {
	if operation == nil {
		return
	}
	operation.mutex.Lock()
	defer operation.mutex.Unlock()
	if operation.settled {
		return
	}
	operation.settled = true
	operation.signals = Signals{}
	if operation.quickStopper != nil {
		operation.quickStopper.Stop()
	}
	if operation.longStopper != nil {
		operation.longStopper.Stop()
	}
}

func (operation *Operation) retractQuick() {
	operation.update(func(signals *Signals) bool {
		if !signals.Quick {
			return false
		}
		signals.Quick = false
		return true
	})
}

func (operation *Operation) raiseLong() {
	operation.update(func(signals *Signals) bool {
		if signals.Long {
			return false
		}
		signals.Long = true
		return true
	})
}

// A callback that loses the race against Settle changes nothing.
func (operation *Operation) update(apply func(signals *Signals) bool) {
	operation.mutex.Lock()
	changed := !operation.settled && apply(&operation.signals)
	operation.mutex.Unlock()
	if changed && operation.onChange != nil {
		operation.onChange()
	}
}

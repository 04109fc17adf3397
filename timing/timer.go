// Package timing provides the phase timers that track how long each stage of
// a job takes.
package timing

import (
	"time"

	"github.com/juju/clock"
	"golang.org/x/xerrors"
)

// ErrInvalidTransition is returned when a timer is started or finished out
// of order.
var ErrInvalidTransition = xerrors.New("invalid timer state transition")

// State describes the state of a Timer.
type State uint8

// The states that a timer goes through. Timers only move forward.
const (
	NotStarted State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Timer measures the duration of a single phase.
type Timer struct {
	name  string
	clk   clock.Clock
	state State
	start time.Time
	end   time.Time
}

// NewTimer returns a Timer that reads the time from clk. If clk is nil, the
// wall clock is used.
func NewTimer(name string, clk clock.Clock) *Timer {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Timer{name: name, clk: clk}
}

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

// State returns the current timer state.
func (t *Timer) State() State { return t.state }

// Start moves a timer that has not been started yet to the Running state.
func (t *Timer) Start() error {
	if t.state != NotStarted {
		return xerrors.Errorf("start %s timer while %s: %w", t.name, t.state, ErrInvalidTransition)
	}
	t.start = t.clk.Now()
	t.state = Running
	return nil
}

// Finish moves a running timer to the Finished state.
func (t *Timer) Finish() error {
	if t.state != Running {
		return xerrors.Errorf("finish %s timer while %s: %w", t.name, t.state, ErrInvalidTransition)
	}
	t.end = t.clk.Now()
	t.state = Finished
	return nil
}

// FinishIfRunning finishes the timer if it is running and reports whether it
// did so.
func (t *Timer) FinishIfRunning() bool {
	if t.state != Running {
		return false
	}
	_ = t.Finish()
	return true
}

// Elapsed returns the time spent in the phase so far. It is zero for timers
// that have not been started.
func (t *Timer) Elapsed() time.Duration {
	switch t.state {
	case Running:
		return t.clk.Now().Sub(t.start)
	case Finished:
		return t.end.Sub(t.start)
	default:
		return 0
	}
}

package timing

import (
	"time"

	"github.com/juju/clock"
)

// Phase names.
const (
	PhaseLoading     = "loading"
	PhaseComputation = "computation"
	PhaseStoring     = "storing"
	PhaseTotal       = "total"
)

// Phases groups the timers of a job.
type Phases struct {
	Loading     *Timer
	Computation *Timer
	Storing     *Timer
	Total       *Timer
}

// NewPhases returns a set of timers that have not been started.
func NewPhases(clk clock.Clock) *Phases {
	return &Phases{
		Loading:     NewTimer(PhaseLoading, clk),
		Computation: NewTimer(PhaseComputation, clk),
		Storing:     NewTimer(PhaseStoring, clk),
		Total:       NewTimer(PhaseTotal, clk),
	}
}

// All returns the timers in the order their phases are entered.
func (p *Phases) All() []*Timer {
	return []*Timer{p.Loading, p.Computation, p.Storing, p.Total}
}

// FinishOpen finishes every running timer. Timers that were never started
// stay that way.
func (p *Phases) FinishOpen() {
	for _, t := range p.All() {
		t.FinishIfRunning()
	}
}

// Durations returns the elapsed time of every started phase keyed by the
// phase name.
func (p *Phases) Durations() map[string]time.Duration {
	durations := make(map[string]time.Duration)
	for _, t := range p.All() {
		if t.State() != NotStarted {
			durations[t.Name()] = t.Elapsed()
		}
	}
	return durations
}

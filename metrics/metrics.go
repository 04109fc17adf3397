// Package metrics defines the one-way sink that conductors and workers report
// job events to.
package metrics

import (
	"sync"
	"time"
)

// Kind identifies the type of an Event.
type Kind string

// The events emitted while executing a job.
const (
	WorkerStarted      Kind = "worker_started"
	GraphLoaded        Kind = "graph_loaded"
	SuperstepCompleted Kind = "superstep_completed"
	ResultsStored      Kind = "results_stored"
	JobFinished        Kind = "job_finished"
)

// Event describes something that happened while executing a job. Only the
// fields relevant to the event Kind are populated.
type Event struct {
	Kind   Kind
	JobID  string
	Worker string

	Superstep      int
	ActiveVertices int
	SentMessages   int
	Vertices       int
	Edges          int
	Stored         int

	// Outcome and Phases are set for JobFinished events.
	Outcome string
	Phases  map[string]time.Duration
}

// Sink is implemented by types that collect events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// Discard is a Sink that drops all events.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of recorded events of the specified kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

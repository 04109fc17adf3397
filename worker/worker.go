// Package worker implements the actor that executes the part of a job that
// concerns a single graph partition.
package worker

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/protocol"
	"github.com/sirupsen/logrus"
)

// Worker is an actor that drives a graph partition through its execution
// states.
type Worker struct {
	st      *State
	current ExecutionState
	d       Dispatcher
}

// New creates a worker with the specified PID.
func New(self actor.PID, cfg Config) (*Worker, error) {
	st, err := NewState(self, cfg)
	if err != nil {
		return nil, err
	}

	w := &Worker{st: st, current: NewInitialState(st)}
	w.d = &actorDispatcher{
		router:  st.cfg.Router,
		st:      st,
		metrics: st.cfg.Metrics,
		status:  st.cfg.Status,
	}
	return w, nil
}

// State returns the state of the worker.
func (w *Worker) State() *State { return w.st }

// Current returns the active execution state.
func (w *Worker) Current() ExecutionState { return w.current }

// Receive implements actor.Actor. The worker is finished once it has
// released all its resources.
func (w *Worker) Receive(sender actor.PID, msg interface{}) bool {
	w.current = apply(w.st, w.current, sender, msg, w.d)
	return IsTerminal(w.current)
}

// apply feeds msg to the current state and returns the state that the
// worker ends up in.
func apply(st *State, current ExecutionState, sender actor.PID, msg interface{}, d Dispatcher) ExecutionState {
	var next ExecutionState
	switch m := msg.(type) {
	case protocol.Cancel:
		next = current.Cancel(sender, d)
	case protocol.WorkerMessage:
		next = current.Receive(sender, m, d)
	default:
		if IsTerminal(current) {
			return current
		}
		next = st.violation(d, current.Name(), sender, msg)
	}

	if next == nil {
		return current
	}
	st.logger.WithFields(logrus.Fields{
		"from":  current.Name(),
		"state": next.Name(),
	}).Debug("state transition")
	return next
}

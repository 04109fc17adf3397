package worker

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/protocol"
	"github.com/sirupsen/logrus"
)

// State names as reported to the status sink.
const (
	stateInitial    = "initial"
	stateLoading    = "loading"
	stateComputing  = "computing"
	stateStoring    = "storing"
	stateCanceled   = "canceled"
	stateFatalError = "fatal_error"
	stateCleanedUp  = "cleaned_up"
)

// StateCleanedUp is the state reported by a worker that released all its
// resources.
const StateCleanedUp = stateCleanedUp

// ExecutionState implements the behavior of a worker during one phase of a
// job. Transitions only depend on the worker state, the message and the
// capabilities exposed by the Dispatcher.
type ExecutionState interface {
	// Name returns the name of the state.
	Name() string

	// Receive processes a message from sender. It returns the next state
	// or nil if the worker should stay in the current state.
	Receive(sender actor.PID, msg protocol.WorkerMessage, d Dispatcher) ExecutionState

	// Cancel aborts the participation of the worker in the job.
	Cancel(sender actor.PID, d Dispatcher) ExecutionState
}

// NewInitialState returns the state that a worker starts in.
func NewInitialState(s *State) ExecutionState {
	return &initialState{State: s}
}

// IsTerminal returns true if the worker has released all its resources and
// its actor can be stopped.
func IsTerminal(st ExecutionState) bool {
	_, done := st.(*cleanedUpState)
	return done
}

type initialState struct {
	*State
}

func (s *initialState) Name() string { return stateInitial }

func (s *initialState) Receive(sender actor.PID, msg protocol.WorkerMessage, d Dispatcher) ExecutionState {
	switch m := msg.(type) {
	case protocol.WorkerStart:
		if s.alg != nil || !s.conductor.IsZero() {
			return s.violation(d, stateInitial, sender, msg)
		}
		if err := s.start(m); err != nil {
			return s.reject(d, err, func(reason string) protocol.ConductorMessage {
				return protocol.WorkerCreated{Err: reason}
			})
		}
		if err := d.ToConductor(protocol.WorkerCreated{}); err != nil {
			return s.fail(d, "reply to WorkerStart: %v", err)
		}
		d.ToMetrics(metrics.Event{Kind: metrics.WorkerStarted, JobID: s.jobID, Worker: s.self.String()})
		s.logger.WithField("algorithm", s.algName).Info("worker started")
		s.publish(d, stateInitial)
		return nil
	case protocol.LoadGraph:
		if s.alg == nil {
			return s.violation(d, stateInitial, sender, msg)
		}
		if err := d.ToSelf(m); err != nil {
			return s.fail(d, "schedule graph loading: %v", err)
		}
		s.publish(d, stateLoading)
		return &loadingState{State: s.State}
	case protocol.Cleanup:
		return s.cleanup(d)
	default:
		return s.violation(d, stateInitial, sender, msg)
	}
}

func (s *initialState) Cancel(sender actor.PID, d Dispatcher) ExecutionState {
	return s.cancel(d, sender)
}

type loadingState struct {
	*State
}

func (s *loadingState) Name() string { return stateLoading }

func (s *loadingState) Receive(sender actor.PID, msg protocol.WorkerMessage, d Dispatcher) ExecutionState {
	switch m := msg.(type) {
	case protocol.LoadGraph:
		if sender != s.self {
			return s.violation(d, stateLoading, sender, msg)
		}
		if err := s.load(m); err != nil {
			return s.reject(d, err, func(reason string) protocol.ConductorMessage {
				return protocol.GraphLoaded{Err: reason}
			})
		}
		if err := d.ToConductor(protocol.GraphLoaded{Vertices: s.vertices, Edges: s.edges}); err != nil {
			return s.fail(d, "reply to LoadGraph: %v", err)
		}
		d.ToMetrics(metrics.Event{
			Kind:     metrics.GraphLoaded,
			JobID:    s.jobID,
			Worker:   s.self.String(),
			Vertices: s.vertices,
			Edges:    s.edges,
		})
		s.logger.WithFields(logrus.Fields{"vertices": s.vertices, "edges": s.edges}).Info("graph partition loaded")
		s.publish(d, stateComputing)
		return &computingState{State: s.State}
	case protocol.Cleanup:
		return s.cleanup(d)
	default:
		return s.violation(d, stateLoading, sender, msg)
	}
}

func (s *loadingState) Cancel(sender actor.PID, d Dispatcher) ExecutionState {
	return s.cancel(d, sender)
}

type computingState struct {
	*State
}

func (s *computingState) Name() string { return stateComputing }

func (s *computingState) Receive(sender actor.PID, msg protocol.WorkerMessage, d Dispatcher) ExecutionState {
	switch m := msg.(type) {
	case protocol.RunSuperstep:
		if sender != s.conductor {
			return s.violation(d, stateComputing, sender, msg)
		}
		if s.pending != nil || m.Superstep != s.superstep {
			return s.fail(d, "received RunSuperstep for superstep %d while expecting superstep %d", m.Superstep, s.superstep)
		}
		s.pending = &m
	case protocol.VertexMessages:
		if !s.isPeer(sender) {
			return s.violation(d, stateComputing, sender, msg)
		}
		if m.Superstep < s.superstep-1 || m.Superstep > s.superstep {
			return s.fail(d, "received messages for superstep %d from %s while at superstep %d", m.Superstep, sender, s.superstep)
		}
		if !s.barrier.Add(sender, m) {
			return s.fail(d, "duplicate messages for superstep %d from %s", m.Superstep, sender)
		}
	case protocol.Store:
		if sender != s.conductor || s.pending != nil {
			return s.violation(d, stateComputing, sender, msg)
		}
		if err := d.ToSelf(m); err != nil {
			return s.fail(d, "schedule result storage: %v", err)
		}
		s.publish(d, stateStoring)
		return &storingState{State: s.State}
	case protocol.Cleanup:
		return s.cleanup(d)
	default:
		return s.violation(d, stateComputing, sender, msg)
	}

	ran, err := s.runReadySuperstep(d)
	if err != nil {
		return s.reject(d, err, func(reason string) protocol.ConductorMessage {
			return protocol.SuperstepFinished{Superstep: s.superstep, Err: reason}
		})
	}
	if ran {
		s.publish(d, stateComputing)
	}
	return nil
}

func (s *computingState) Cancel(sender actor.PID, d Dispatcher) ExecutionState {
	return s.cancel(d, sender)
}

type storingState struct {
	*State
}

func (s *storingState) Name() string { return stateStoring }

func (s *storingState) Receive(sender actor.PID, msg protocol.WorkerMessage, d Dispatcher) ExecutionState {
	switch msg.(type) {
	case protocol.Store:
		if sender != s.self {
			return s.violation(d, stateStoring, sender, msg)
		}
		stored, err := s.persist()
		if err != nil {
			return s.reject(d, err, func(reason string) protocol.ConductorMessage {
				return protocol.ResultsStored{Err: reason}
			})
		}
		if err = d.ToConductor(protocol.ResultsStored{Stored: stored}); err != nil {
			return s.fail(d, "reply to Store: %v", err)
		}
		d.ToMetrics(metrics.Event{Kind: metrics.ResultsStored, JobID: s.jobID, Worker: s.self.String(), Stored: stored})
		s.logger.WithField("stored", stored).Info("results stored")
		s.publish(d, stateStoring)
		return nil
	case protocol.VertexMessages:
		// Peers send one last batch after the final superstep.
		if !s.isPeer(sender) {
			return s.violation(d, stateStoring, sender, msg)
		}
		return nil
	case protocol.Cleanup:
		return s.cleanup(d)
	default:
		return s.violation(d, stateStoring, sender, msg)
	}
}

func (s *storingState) Cancel(sender actor.PID, d Dispatcher) ExecutionState {
	return s.cancel(d, sender)
}

// idle implements the states in which a worker holds no resources and only
// waits for the conductor to ask for a cleanup.
type idle struct {
	*State
	name string
}

func (s *idle) Name() string { return s.name }

func (s *idle) Receive(sender actor.PID, msg protocol.WorkerMessage, d Dispatcher) ExecutionState {
	if _, ok := msg.(protocol.Cleanup); ok {
		return s.cleanup(d)
	}
	s.logger.WithFields(logrus.Fields{
		"state":  s.name,
		"sender": sender.String(),
		"msg":    messageName(msg),
	}).Debug("ignoring message")
	return nil
}

func (s *idle) Cancel(actor.PID, Dispatcher) ExecutionState { return nil }

type canceledState struct {
	idle
}

func newCanceledState(s *State) *canceledState {
	return &canceledState{idle{State: s, name: stateCanceled}}
}

type fatalErrorState struct {
	idle
}

func newFatalErrorState(s *State) *fatalErrorState {
	return &fatalErrorState{idle{State: s, name: stateFatalError}}
}

type cleanedUpState struct {
	*State
}

func (s *cleanedUpState) Name() string { return stateCleanedUp }

func (s *cleanedUpState) Receive(sender actor.PID, msg protocol.WorkerMessage, _ Dispatcher) ExecutionState {
	s.logger.WithFields(logrus.Fields{
		"sender": sender.String(),
		"msg":    messageName(msg),
	}).Debug("ignoring message received after cleanup")
	return nil
}

func (s *cleanedUpState) Cancel(actor.PID, Dispatcher) ExecutionState { return nil }

package conductor

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/status"
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

// ExecutionState implements the behavior of a conductor during one phase of
// a job.
type ExecutionState interface {
	// Name returns the name of the state.
	Name() string

	// Receive processes a message from sender. It returns the next state
	// or nil if the conductor should stay in the current state.
	Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState

	// Cancel aborts the job. It returns the next state or nil if the
	// conductor should stay in the current state.
	Cancel(sender actor.PID) ExecutionState
}

// NewInitialState returns the state that a conductor starts in.
func NewInitialState(s *State) ExecutionState {
	return &initialState{State: s}
}

// IsTerminal returns true if st is a state that the conductor never leaves.
func IsTerminal(st ExecutionState) bool {
	switch st.(type) {
	case *cleanedUpState, *fatalErrorState:
		return true
	default:
		return false
	}
}

type initialState struct {
	*State
}

func (s *initialState) Name() string { return stateInitial }

func (s *initialState) Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState {
	if _, ok := msg.(protocol.Start); !ok {
		return s.violation(stateInitial, sender, msg)
	}

	if err := advanceTimers(s.timing.Total.Start, s.timing.Loading.Start); err != nil {
		return s.fail("%s: %v", stateInitial, err)
	}
	for _, pid := range s.cfg.Workers {
		s.workers[pid] = struct{}{}
	}

	start := protocol.WorkerStart{
		JobID:          s.cfg.JobID,
		Algorithm:      s.cfg.Algorithm,
		Params:         s.cfg.Params,
		Conductor:      s.self,
		ComputeWorkers: s.cfg.ComputeWorkers,
		Store:          s.cfg.Store,
	}
	load := protocol.LoadGraph{
		Workers: s.cfg.Workers,
		Source:  s.cfg.Source,
	}
	for _, pid := range s.cfg.Workers {
		if err := s.send(pid, start); err != nil {
			return s.fail("start worker %s: %v", pid, err)
		}
		if err := s.send(pid, load); err != nil {
			return s.fail("load graph on worker %s: %v", pid, err)
		}
	}

	s.logger.WithField("workers", len(s.workers)).Info("loading graph")
	s.publish(stateLoading)
	return &loadingState{State: s.State}
}

func (s *initialState) Cancel(sender actor.PID) ExecutionState { return s.cancel(sender) }

type loadingState struct {
	*State
}

func (s *loadingState) Name() string { return stateLoading }

func (s *loadingState) Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState {
	if !s.isKnown(sender) {
		return s.violation(stateLoading, sender, msg)
	}

	switch m := msg.(type) {
	case protocol.WorkerCreated:
		if m.Err != "" {
			return s.fail("worker %s could not be created: %s", sender, m.Err)
		}
		if _, dup := s.created[sender]; dup {
			return s.fail("duplicate WorkerCreated from worker %s", sender)
		}
		s.created[sender] = struct{}{}
		return nil
	case protocol.GraphLoaded:
		if m.Err != "" {
			return s.fail("worker %s could not load its graph partition: %s", sender, m.Err)
		}
		if _, created := s.created[sender]; !created {
			return s.fail("GraphLoaded from worker %s before WorkerCreated", sender)
		}
		if !s.report(sender) {
			return s.fail("duplicate GraphLoaded from worker %s", sender)
		}
		s.vertices += m.Vertices
		s.edges += m.Edges
		if !s.allReported() {
			return nil
		}

		if err := advanceTimers(s.timing.Loading.Finish, s.timing.Computation.Start); err != nil {
			return s.fail("%s: %v", stateLoading, err)
		}
		s.logger.WithFields(logrus.Fields{"vertices": s.vertices, "edges": s.edges}).Info("graph loaded")
		return s.startComputing()
	default:
		return s.violation(stateLoading, sender, msg)
	}
}

func (s *loadingState) Cancel(sender actor.PID) ExecutionState { return s.cancel(sender) }

// startComputing asks every worker to run superstep 0.
func (s *State) startComputing() ExecutionState {
	s.superstep = 0
	if next := s.runSuperstep(); next != nil {
		return next
	}
	s.publish(stateComputing)
	return &computingState{State: s}
}

// runSuperstep broadcasts the RunSuperstep request for the current superstep.
// It returns a non-nil state if the request could not be delivered.
func (s *State) runSuperstep() ExecutionState {
	s.resetReports()
	s.active, s.sent = 0, 0

	req, err := s.runSuperstepMessage()
	if err != nil {
		return s.fail("encode aggregator values for superstep %d: %v", s.superstep, err)
	}
	if err = s.broadcast(req); err != nil {
		return s.fail("run superstep %d: %v", s.superstep, err)
	}
	return nil
}

type computingState struct {
	*State
}

func (s *computingState) Name() string { return stateComputing }

func (s *computingState) Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState {
	if !s.isKnown(sender) {
		return s.violation(stateComputing, sender, msg)
	}

	m, ok := msg.(protocol.SuperstepFinished)
	if !ok {
		return s.violation(stateComputing, sender, msg)
	}

	switch {
	case m.Err != "":
		return s.fail("worker %s failed superstep %d: %s", sender, m.Superstep, m.Err)
	case m.Superstep != s.superstep:
		return s.fail("worker %s reported superstep %d while executing superstep %d", sender, m.Superstep, s.superstep)
	case !s.report(sender):
		return s.fail("duplicate SuperstepFinished from worker %s for superstep %d", sender, s.superstep)
	}

	if err := s.mergeDeltas(m.Aggregators); err != nil {
		return s.fail("merge aggregator deltas from worker %s: %v", sender, err)
	}
	s.active += m.ActiveVertices
	s.sent += m.SentMessages
	if !s.allReported() {
		return nil
	}

	s.cfg.Metrics.Emit(metrics.Event{
		Kind:           metrics.SuperstepCompleted,
		JobID:          s.cfg.JobID,
		Superstep:      s.superstep,
		ActiveVertices: s.active,
		SentMessages:   s.sent,
	})

	keepRunning, err := algorithm.KeepRunning(s.cfg.Alg, s.superstep, s.aggregators, s.active, s.sent, s.cfg.MaxSupersteps)
	if err != nil {
		return s.fail("post superstep %d: %v", s.superstep, err)
	}

	s.logger.WithFields(logrus.Fields{
		"superstep": s.superstep,
		"active":    s.active,
		"sent":      s.sent,
	}).Debug("superstep completed")

	if keepRunning {
		s.superstep++
		if next := s.runSuperstep(); next != nil {
			return next
		}
		s.publish(stateComputing)
		return nil
	}

	if err = advanceTimers(s.timing.Computation.Finish, s.timing.Storing.Start); err != nil {
		return s.fail("%s: %v", stateComputing, err)
	}
	s.resetReports()
	if err = s.broadcast(protocol.Store{}); err != nil {
		return s.fail("store results: %v", err)
	}
	s.logger.WithField("superstep", s.superstep).Info("computation completed; storing results")
	s.publish(stateStoring)
	return &storingState{State: s.State}
}

func (s *computingState) Cancel(sender actor.PID) ExecutionState { return s.cancel(sender) }

type storingState struct {
	*State
}

func (s *storingState) Name() string { return stateStoring }

func (s *storingState) Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState {
	if !s.isKnown(sender) {
		return s.violation(stateStoring, sender, msg)
	}

	m, ok := msg.(protocol.ResultsStored)
	if !ok {
		return s.violation(stateStoring, sender, msg)
	}
	if m.Err != "" {
		return s.fail("worker %s could not store results: %s", sender, m.Err)
	}
	if !s.report(sender) {
		return s.fail("duplicate ResultsStored from worker %s", sender)
	}
	s.stored += m.Stored
	if !s.allReported() {
		return nil
	}

	if err := advanceTimers(s.timing.Storing.Finish, s.timing.Total.Finish); err != nil {
		return s.fail("%s: %v", stateStoring, err)
	}
	s.broadcastCleanup()
	s.finish(status.Succeeded, stateCleanedUp)
	return newCleanedUpState(s.State)
}

func (s *storingState) Cancel(sender actor.PID) ExecutionState { return s.cancel(sender) }

// canceledState waits for every worker to confirm that it released its
// resources.
type canceledState struct {
	*State
}

func (s *canceledState) Name() string { return stateCanceled }

func (s *canceledState) Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState {
	_, cleanedUp := msg.(protocol.CleanupFinished)
	if cleanedUp && !s.isKnown(sender) && s.wasAssigned(sender) {
		s.logger.WithField("worker", sender.String()).Warn("ignoring duplicate CleanupFinished")
		return nil
	}
	if !s.isKnown(sender) || !cleanedUp {
		return s.violation(stateCanceled, sender, msg)
	}

	delete(s.workers, sender)
	if len(s.workers) != 0 {
		s.publish(stateCanceled)
		return nil
	}

	s.finish(status.Canceled, stateCleanedUp)
	return newCleanedUpState(s.State)
}

func (s *canceledState) Cancel(actor.PID) ExecutionState { return nil }

// terminal implements the behavior shared by the states that a conductor
// never leaves: CleanupFinished replies shrink the worker set and anything
// else is ignored.
type terminal struct {
	*State
	name string
}

func (s *terminal) Name() string { return s.name }

func (s *terminal) Receive(sender actor.PID, msg protocol.ConductorMessage) ExecutionState {
	if _, ok := msg.(protocol.CleanupFinished); ok && s.isKnown(sender) {
		delete(s.workers, sender)
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"state":  s.name,
		"sender": sender.String(),
		"msg":    messageName(msg),
	}).Warn("ignoring message received after the job ended")
	return nil
}

func (s *terminal) Cancel(actor.PID) ExecutionState { return nil }

type cleanedUpState struct {
	terminal
}

func newCleanedUpState(s *State) *cleanedUpState {
	return &cleanedUpState{terminal{State: s, name: stateCleanedUp}}
}

type fatalErrorState struct {
	terminal
}

func newFatalErrorState(s *State) *fatalErrorState {
	return &fatalErrorState{terminal{State: s, name: stateFatalError}}
}

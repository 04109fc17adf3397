package conductor

import (
	"fmt"
	"sort"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/aggregator"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/status"
	"github.com/pregelhq/pregel/timing"
	"github.com/sirupsen/logrus"
)

// State holds the per-job data shared by the execution states of a
// conductor. It is owned by the conductor actor and only ever accessed from
// its goroutine.
type State struct {
	cfg    Config
	self   actor.PID
	logger *logrus.Entry

	// workers is the set of workers that still hold resources for the
	// job. It only shrinks once the job is being cleaned up.
	workers map[actor.PID]struct{}

	// reported tracks the workers that replied during the current phase
	// or superstep.
	reported map[actor.PID]struct{}
	created  map[actor.PID]struct{}

	timing      *timing.Phases
	aggregators *aggregator.Set
	superstep   int

	vertices, edges int
	active, sent    int
	stored          int

	outcome status.Outcome
	errMsg  string
}

// NewState creates the shared conductor state for the job described by cfg.
// The conductor sends messages using self as the sender PID.
func NewState(self actor.PID, cfg Config) *State {
	aggrs := aggregator.NewSet()
	cfg.Alg.RegisterAggregators(aggrs)

	return &State{
		cfg:         cfg,
		self:        self,
		logger:      cfg.Logger.WithField("job_id", cfg.JobID),
		workers:     make(map[actor.PID]struct{}),
		reported:    make(map[actor.PID]struct{}),
		created:     make(map[actor.PID]struct{}),
		timing:      timing.NewPhases(cfg.Clock),
		aggregators: aggrs,
		outcome:     status.Running,
	}
}

// JobID returns the ID of the job.
func (s *State) JobID() string { return s.cfg.JobID }

// Superstep returns the current superstep.
func (s *State) Superstep() int { return s.superstep }

// Timing returns the phase timers of the job.
func (s *State) Timing() *timing.Phases { return s.timing }

// Workers returns the sorted list of workers that still hold resources for
// the job.
func (s *State) Workers() []actor.PID {
	list := make([]actor.PID, 0, len(s.workers))
	for pid := range s.workers {
		list = append(list, pid)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].String() < list[j].String() })
	return list
}

// Outcome returns the outcome of the job.
func (s *State) Outcome() status.Outcome { return s.outcome }

// Err returns the reason that the job failed, if any.
func (s *State) Err() string { return s.errMsg }

func (s *State) isKnown(pid actor.PID) bool {
	_, known := s.workers[pid]
	return known
}

func (s *State) resetReports() {
	s.reported = make(map[actor.PID]struct{})
}

// report records a reply from sender for the current phase and returns
// false if sender already replied.
func (s *State) report(sender actor.PID) bool {
	if _, dup := s.reported[sender]; dup {
		return false
	}
	s.reported[sender] = struct{}{}
	return true
}

func (s *State) allReported() bool { return len(s.reported) == len(s.workers) }

// send delivers msg to a single worker.
func (s *State) send(to actor.PID, msg interface{}) error {
	return s.cfg.Dispatcher.Dispatch(s.self, to, msg)
}

// broadcast delivers msg to every known worker in partition order.
func (s *State) broadcast(msg interface{}) error {
	for _, pid := range s.cfg.Workers {
		if !s.isKnown(pid) {
			continue
		}
		if err := s.send(pid, msg); err != nil {
			return err
		}
	}
	return nil
}

// broadcastCleanup asks every known worker to release its resources. A
// worker that cannot be reached will never confirm the cleanup, so it is
// dropped from the worker set.
func (s *State) broadcastCleanup() {
	for _, pid := range s.cfg.Workers {
		if !s.isKnown(pid) {
			continue
		}
		if err := s.send(pid, protocol.Cleanup{}); err != nil {
			s.logger.WithFields(logrus.Fields{"worker": pid.String(), "err": err}).Warn("unable to send cleanup request; dropping worker")
			delete(s.workers, pid)
		}
	}
}

// wasAssigned returns true if pid is one of the workers the job runs on,
// regardless of whether it has already been cleaned up.
func (s *State) wasAssigned(pid actor.PID) bool {
	for _, w := range s.cfg.Workers {
		if w == pid {
			return true
		}
	}
	return false
}

// advanceTimers applies the timer transitions in order and stops at the
// first one that fails.
func advanceTimers(transitions ...func() error) error {
	for _, fn := range transitions {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// runSuperstepMessage builds the RunSuperstep request for the current
// superstep.
func (s *State) runSuperstepMessage() (protocol.RunSuperstep, error) {
	values, err := s.aggregators.EncodeValues()
	if err != nil {
		return protocol.RunSuperstep{}, err
	}
	return protocol.RunSuperstep{Superstep: s.superstep, Aggregators: values}, nil
}

func (s *State) mergeDeltas(deltas map[string]*any.Any) error {
	return s.aggregators.MergeDeltas(deltas)
}

// publish pushes the current job status to the status sink.
func (s *State) publish(state string) {
	s.cfg.Status.JobUpdated(status.Job{
		JobID:     s.cfg.JobID,
		Algorithm: s.cfg.Algorithm,
		State:     state,
		Outcome:   s.outcome,
		Superstep: s.superstep,
		Workers:   len(s.workers),
		Vertices:  s.vertices,
		Edges:     s.edges,
		Phases:    s.timing.Durations(),
		Error:     s.errMsg,
		UpdatedAt: s.cfg.Clock.Now(),
	})
}

// finish records the job outcome and reports it.
func (s *State) finish(outcome status.Outcome, state string) {
	s.outcome = outcome
	s.publish(state)
	s.cfg.Metrics.Emit(metrics.Event{
		Kind:    metrics.JobFinished,
		JobID:   s.cfg.JobID,
		Outcome: string(outcome),
		Phases:  s.timing.Durations(),
	})
	s.logger.WithFields(logrus.Fields{
		"outcome":   outcome,
		"superstep": s.superstep,
		"err":       s.errMsg,
	}).Info("job finished")
}

// fail moves the job to the FatalError state. Open timers are finished and
// every known worker is asked to clean up.
func (s *State) fail(format string, args ...interface{}) ExecutionState {
	s.errMsg = fmt.Sprintf(format, args...)
	s.timing.FinishOpen()
	s.broadcastCleanup()
	s.finish(status.Failed, stateFatalError)
	return newFatalErrorState(s)
}

// cancel moves the job to the Canceled state or straight to CleanedUp if no
// worker holds any resources.
func (s *State) cancel(sender actor.PID) ExecutionState {
	s.logger.WithField("sender", sender.String()).Info("job canceled")
	s.timing.FinishOpen()
	if len(s.workers) == 0 {
		s.finish(status.Canceled, stateCleanedUp)
		return newCleanedUpState(s)
	}

	s.broadcastCleanup()
	if len(s.workers) == 0 {
		s.finish(status.Canceled, stateCleanedUp)
		return newCleanedUpState(s)
	}
	s.publish(stateCanceled)
	return &canceledState{State: s}
}

// violation moves the job to the FatalError state because of a message that
// is not valid in the current state.
func (s *State) violation(state string, sender actor.PID, msg interface{}) ExecutionState {
	if werr, ok := msg.(protocol.WorkerError); ok && s.isKnown(sender) {
		return s.fail("%s: worker %s reported an error: %s", state, sender, werr.Reason)
	}
	if !s.isKnown(sender) {
		return s.fail("%s: unexpected message %s from unknown sender %s", state, messageName(msg), sender)
	}
	return s.fail("%s: unexpected message %s from worker %s", state, messageName(msg), sender)
}

func messageName(msg interface{}) string {
	if name := protocol.Name(msg); name != "" {
		return name
	}
	return fmt.Sprintf("%T", msg)
}

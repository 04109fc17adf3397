package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/partition"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/status"
	"github.com/pregelhq/pregel/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// State holds the data of a worker participating in a single job. It is
// owned by the worker actor and only ever accessed from its goroutine.
type State struct {
	cfg    Config
	self   actor.PID
	logger *logrus.Entry

	conductor      actor.PID
	jobID          string
	algName        string
	alg            algorithm.Algorithm
	computeWorkers int
	storeResults   bool

	graph   *graph.Partition
	peers   []actor.PID
	index   int
	ranges  *partition.Range
	outbox  *outbox
	barrier *stepBarrier

	// pending is the RunSuperstep request that waits for the barrier.
	pending *protocol.RunSuperstep

	// superstep is the next superstep to execute.
	superstep int

	vertices, edges int
	errMsg          string
}

// NewState creates the state of the worker with the specified PID.
func NewState(self actor.PID, cfg Config) (*State, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("worker config validation failed: %w", err)
	}
	return &State{
		cfg:    cfg,
		self:   self,
		logger: cfg.Logger.WithField("worker", self.String()),
	}, nil
}

// JobID returns the ID of the job that the worker participates in.
func (s *State) JobID() string { return s.jobID }

// Conductor returns the PID of the job conductor.
func (s *State) Conductor() actor.PID { return s.conductor }

// Superstep returns the next superstep that the worker will execute.
func (s *State) Superstep() int { return s.superstep }

// Partition returns the graph partition of the worker or nil if no graph
// is loaded.
func (s *State) Partition() *graph.Partition { return s.graph }

// Err returns the reason that the worker failed, if any.
func (s *State) Err() string { return s.errMsg }

// start prepares the worker for the job described by msg.
func (s *State) start(msg protocol.WorkerStart) error {
	s.conductor = msg.Conductor
	s.jobID = msg.JobID
	s.algName = msg.Algorithm
	s.computeWorkers = msg.ComputeWorkers
	s.storeResults = msg.Store
	s.logger = s.logger.WithField("job_id", msg.JobID)

	alg, err := s.cfg.Algorithms.New(msg.Algorithm, msg.Params)
	if err != nil {
		return err
	}
	s.alg = alg
	return nil
}

// load creates the graph partition of the worker and populates it with the
// vertices that the worker owns.
func (s *State) load(msg protocol.LoadGraph) error {
	s.peers = msg.Workers
	s.index = -1
	for i, pid := range msg.Workers {
		if pid == s.self {
			s.index = i
			break
		}
	}
	if s.index < 0 {
		return xerrors.Errorf("worker %s is not part of the worker list", s.self)
	}

	ranges, err := partition.NewFullRange(len(msg.Workers))
	if err != nil {
		return err
	}
	s.ranges = ranges

	p, err := algorithm.NewLocalPartition(s.alg, s.computeWorkers)
	if err != nil {
		return err
	}
	s.graph = p
	s.graph.RegisterRelayer(graph.RelayerFunc(s.relay))
	s.outbox = newOutbox(len(msg.Workers), s.alg.Combiner())
	s.barrier = newStepBarrier(len(msg.Workers) - 1)

	if err = graph.Load(context.Background(), msg.Source, s.graph, s.owns); err != nil {
		return err
	}
	s.vertices, s.edges = s.graph.NumVertices(), s.graph.NumEdges()
	return nil
}

func (s *State) owns(vertexID string) bool {
	index, err := s.ranges.PartitionForVertex(vertexID)
	return err == nil && index == s.index
}

// relay is invoked by the partition for messages addressed to vertices that
// are not present locally.
func (s *State) relay(dst string, msg message.Message) error {
	index, err := s.ranges.PartitionForVertex(dst)
	if err != nil {
		return err
	}
	if index == s.index {
		return graph.ErrDestinationIsLocal
	}
	s.outbox.Add(index, dst, msg)
	return nil
}

// isPeer returns true if pid is one of the other workers of the job.
func (s *State) isPeer(pid actor.PID) bool {
	for i, peer := range s.peers {
		if i != s.index && peer == pid {
			return true
		}
	}
	return false
}

// runReadySuperstep executes the pending superstep once the batches of every
// peer arrived. It returns false if there was nothing to run.
func (s *State) runReadySuperstep(d Dispatcher) (bool, error) {
	req := s.pending
	if req == nil || !s.barrier.Ready(req.Superstep-1) {
		return false, nil
	}
	s.pending = nil
	return true, s.executeSuperstep(d, *req)
}

func (s *State) executeSuperstep(d Dispatcher, req protocol.RunSuperstep) error {
	step := req.Superstep
	serializer := s.alg.Serializer()

	for peer, batch := range s.barrier.Take(step - 1) {
		for _, vm := range batch {
			msg, err := serializer.Unserialize(vm.Payload)
			if err != nil {
				return xerrors.Errorf("decode message from %s: %w", peer, err)
			}
			if err = s.graph.DeliverMessage(vm.Dst, step-1, msg); err != nil {
				return err
			}
		}
	}

	if err := s.graph.Aggregators().SetValues(req.Aggregators); err != nil {
		return err
	}

	active, err := s.graph.Step(step)
	if err != nil {
		return err
	}

	for i, peer := range s.peers {
		if i == s.index {
			continue
		}
		batch := protocol.VertexMessages{Superstep: step}
		err = s.outbox.Drain(i, func(dst string, msg message.Message) error {
			payload, err := serializer.Serialize(msg)
			if err != nil {
				return err
			}
			batch.Messages = append(batch.Messages, protocol.VertexMessage{Dst: dst, Payload: payload})
			return nil
		})
		if err != nil {
			return xerrors.Errorf("encode messages for %s: %w", peer, err)
		}
		if err = d.ToWorker(peer, batch); err != nil {
			return xerrors.Errorf("send messages to %s: %w", peer, err)
		}
	}

	deltas, err := s.graph.Aggregators().EncodeDeltas()
	if err != nil {
		return err
	}

	sent := s.graph.SentMessages()
	if err = d.ToConductor(protocol.SuperstepFinished{
		Superstep:      step,
		ActiveVertices: active,
		SentMessages:   sent,
		Aggregators:    deltas,
	}); err != nil {
		return err
	}
	s.superstep = step + 1

	d.ToMetrics(metrics.Event{
		Kind:           metrics.SuperstepCompleted,
		JobID:          s.jobID,
		Worker:         s.self.String(),
		Superstep:      step,
		ActiveVertices: active,
		SentMessages:   sent,
	})
	s.logger.WithFields(logrus.Fields{
		"superstep": step,
		"active":    active,
		"sent":      sent,
	}).Debug("superstep executed")
	return nil
}

// persist stores the result of every vertex in the result store. It returns
// the number of stored results.
func (s *State) persist() (int, error) {
	if !s.storeResults {
		return 0, nil
	}
	if s.cfg.Store == nil {
		return 0, xerrors.New("no result store configured")
	}

	results := make([]store.VertexResult, 0, s.graph.NumVertices())
	for id, v := range s.graph.Vertices() {
		res, err := store.EncodeResult(id, s.alg.Result(v))
		if err != nil {
			return 0, err
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].VertexID < results[j].VertexID })

	ctx, cancelFn := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancelFn()
	if err := s.cfg.Store.StoreResults(ctx, s.jobID, results); err != nil {
		return 0, err
	}
	return len(results), nil
}

// release frees the graph partition and any buffered messages.
func (s *State) release() {
	if s.graph != nil {
		if err := s.graph.Close(); err != nil {
			s.logger.WithField("err", err).Warn("unable to release graph partition")
		}
		s.graph = nil
	}
	s.outbox = nil
	s.barrier = nil
	s.pending = nil
}

// publish pushes the current worker status to the status sink.
func (s *State) publish(d Dispatcher, state string) {
	d.ToStatus(status.Worker{
		JobID:     s.jobID,
		Worker:    s.self.String(),
		State:     state,
		Superstep: s.superstep,
		Vertices:  s.vertices,
		Error:     s.errMsg,
		UpdatedAt: s.cfg.Clock.Now(),
	})
}

// reportError sends a WorkerError to the conductor, if it is known.
func (s *State) reportError(d Dispatcher, reason string) {
	if err := d.ToConductor(protocol.WorkerError{Reason: reason}); err != nil {
		s.logger.WithFields(logrus.Fields{"err": err, "reason": reason}).Warn("unable to report error to conductor")
	}
}

// fail moves the worker to the FatalError state and notifies the conductor.
func (s *State) fail(d Dispatcher, format string, args ...interface{}) ExecutionState {
	s.errMsg = fmt.Sprintf(format, args...)
	s.logger.WithField("err", s.errMsg).Error("worker failed")
	s.release()
	s.reportError(d, s.errMsg)
	s.publish(d, stateFatalError)
	return newFatalErrorState(s)
}

// reject reports a failed request to the conductor using the reply built by
// replyFn and moves the worker to the FatalError state.
func (s *State) reject(d Dispatcher, reason error, replyFn func(reason string) protocol.ConductorMessage) ExecutionState {
	s.errMsg = reason.Error()
	s.logger.WithField("err", s.errMsg).Error("request failed")
	if err := d.ToConductor(replyFn(s.errMsg)); err != nil {
		s.logger.WithField("err", err).Warn("unable to report failure to conductor")
	}
	s.release()
	s.publish(d, stateFatalError)
	return newFatalErrorState(s)
}

// violation moves the worker to the FatalError state because of a message
// that is not valid in the current state.
func (s *State) violation(d Dispatcher, state string, sender actor.PID, msg interface{}) ExecutionState {
	return s.fail(d, "%s: unexpected message %s from %s", state, messageName(msg), sender)
}

// cancel releases the resources of the worker and moves it to the Canceled
// state.
func (s *State) cancel(d Dispatcher, sender actor.PID) ExecutionState {
	s.logger.WithField("sender", sender.String()).Info("worker canceled")
	s.release()
	s.reportError(d, "worker canceled")
	s.publish(d, stateCanceled)
	return newCanceledState(s)
}

// cleanup releases the resources of the worker and confirms it to the
// conductor.
func (s *State) cleanup(d Dispatcher) ExecutionState {
	s.release()
	if err := d.ToConductor(protocol.CleanupFinished{}); err != nil {
		s.logger.WithField("err", err).Warn("unable to confirm cleanup")
	}
	s.publish(d, stateCleanedUp)
	return &cleanedUpState{State: s}
}

func messageName(msg interface{}) string {
	if name := protocol.Name(msg); name != "" {
		return name
	}
	return fmt.Sprintf("%T", msg)
}

// Package protocol defines the messages exchanged between the conductor of a
// job and its workers.
//
// Messages addressed to a conductor implement ConductorMessage while messages
// addressed to a worker implement WorkerMessage. Both interfaces are sealed so
// that state handlers can match them exhaustively with a type switch. Error
// fields are plain strings as they need to survive the trip over the wire.
package protocol

import (
	"github.com/golang/protobuf/ptypes/any"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/graph"
)

// ConductorMessage is implemented by messages that can be delivered to a
// conductor.
type ConductorMessage interface {
	conductorMessage()
}

// WorkerMessage is implemented by messages that can be delivered to a
// worker.
type WorkerMessage interface {
	workerMessage()
}

// Start is delivered to a conductor once its job has been submitted.
type Start struct{}

// Cancel requests the cancellation of a running job. It can be delivered to
// both conductors and workers.
type Cancel struct {
	Reason string `msgpack:"reason,omitempty"`
}

// WorkerStart asks a worker to set up its state for a new job.
type WorkerStart struct {
	JobID     string            `msgpack:"job_id"`
	Algorithm string            `msgpack:"algorithm"`
	Params    map[string]string `msgpack:"params,omitempty"`
	Conductor actor.PID         `msgpack:"conductor"`

	// ComputeWorkers is the number of goroutines used for executing the
	// compute function of the partition.
	ComputeWorkers int `msgpack:"compute_workers,omitempty"`

	// Store controls whether results are persisted when the job completes.
	Store bool `msgpack:"store"`
}

// LoadGraph asks a worker to load its partition of the graph. The worker's
// partition index is its position in Workers.
type LoadGraph struct {
	Workers []actor.PID      `msgpack:"workers"`
	Source  graph.SourceSpec `msgpack:"source"`
}

// RunSuperstep asks a worker to execute the specified superstep using the
// provided global aggregator values.
type RunSuperstep struct {
	Superstep   int                 `msgpack:"superstep"`
	Aggregators map[string]*any.Any `msgpack:"aggregators,omitempty"`
}

// VertexMessage is a single message addressed to a vertex.
type VertexMessage struct {
	Dst     string   `msgpack:"dst"`
	Payload *any.Any `msgpack:"payload"`
}

// VertexMessages carries the messages that a worker produced for the vertices
// of a peer during a superstep. Each worker sends exactly one (possibly empty)
// batch to every peer per superstep.
type VertexMessages struct {
	Superstep int             `msgpack:"superstep"`
	Messages  []VertexMessage `msgpack:"messages,omitempty"`
}

// Store asks a worker to persist the computation results.
type Store struct{}

// Cleanup asks a worker to release all resources associated with the job.
type Cleanup struct{}

// WorkerCreated is the reply to WorkerStart.
type WorkerCreated struct {
	Err string `msgpack:"err,omitempty"`
}

// GraphLoaded is the reply to LoadGraph.
type GraphLoaded struct {
	Vertices int    `msgpack:"vertices"`
	Edges    int    `msgpack:"edges"`
	Err      string `msgpack:"err,omitempty"`
}

// SuperstepFinished is the reply to RunSuperstep.
type SuperstepFinished struct {
	Superstep      int                 `msgpack:"superstep"`
	ActiveVertices int                 `msgpack:"active"`
	SentMessages   int                 `msgpack:"sent"`
	Aggregators    map[string]*any.Any `msgpack:"aggregators,omitempty"`
	Err            string              `msgpack:"err,omitempty"`
}

// ResultsStored is the reply to Store.
type ResultsStored struct {
	Stored int    `msgpack:"stored"`
	Err    string `msgpack:"err,omitempty"`
}

// CleanupFinished is the reply to Cleanup.
type CleanupFinished struct{}

// WorkerError is sent by a worker that can no longer participate in its job.
type WorkerError struct {
	Reason string `msgpack:"reason"`
}

func (Start) conductorMessage()             {}
func (Cancel) conductorMessage()            {}
func (WorkerCreated) conductorMessage()     {}
func (GraphLoaded) conductorMessage()       {}
func (SuperstepFinished) conductorMessage() {}
func (ResultsStored) conductorMessage()     {}
func (CleanupFinished) conductorMessage()   {}
func (WorkerError) conductorMessage()       {}

func (Cancel) workerMessage()         {}
func (WorkerStart) workerMessage()    {}
func (LoadGraph) workerMessage()      {}
func (RunSuperstep) workerMessage()   {}
func (VertexMessages) workerMessage() {}
func (Store) workerMessage()          {}
func (Cleanup) workerMessage()        {}

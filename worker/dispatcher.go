package worker

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/status"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/pregelhq/pregel/worker Dispatcher

// ErrNoConductor is returned when a worker attempts to contact its conductor
// before it has received a WorkerStart message.
var ErrNoConductor = xerrors.New("conductor not known yet")

// Dispatcher provides the capabilities that worker execution states use for
// talking to the rest of the system. A fresh Dispatcher is handed to every
// Receive call so that state transitions never hold on to it.
type Dispatcher interface {
	// ToSelf enqueues msg in the worker's own mailbox.
	ToSelf(msg protocol.WorkerMessage) error

	// ToConductor sends msg to the conductor of the job.
	ToConductor(msg protocol.ConductorMessage) error

	// ToWorker sends msg to a peer worker.
	ToWorker(pid actor.PID, msg protocol.WorkerMessage) error

	// ToMetrics emits a metrics event.
	ToMetrics(ev metrics.Event)

	// ToStatus publishes the status of the worker.
	ToStatus(w status.Worker)
}

// Router is implemented by types that can deliver messages to actors. It is
// satisfied by *actor.Runtime.
type Router interface {
	Dispatch(sender, receiver actor.PID, msg interface{}) error
}

// actorDispatcher implements Dispatcher on top of a Router.
type actorDispatcher struct {
	router  Router
	st      *State
	metrics metrics.Sink
	status  status.Sink
}

func (d *actorDispatcher) ToSelf(msg protocol.WorkerMessage) error {
	return d.router.Dispatch(d.st.self, d.st.self, msg)
}

func (d *actorDispatcher) ToConductor(msg protocol.ConductorMessage) error {
	if d.st.conductor.IsZero() {
		return ErrNoConductor
	}
	return d.router.Dispatch(d.st.self, d.st.conductor, msg)
}

func (d *actorDispatcher) ToWorker(pid actor.PID, msg protocol.WorkerMessage) error {
	return d.router.Dispatch(d.st.self, pid, msg)
}

func (d *actorDispatcher) ToMetrics(ev metrics.Event) { d.metrics.Emit(ev) }

func (d *actorDispatcher) ToStatus(w status.Worker) { d.status.WorkerUpdated(w) }

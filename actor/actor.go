package actor

import "golang.org/x/xerrors"

var (
	// ErrUnknownActor is returned by Dispatch when the receiver is not
	// running on the local server and cannot be spawned on demand.
	ErrUnknownActor = xerrors.New("unknown actor")

	// ErrNoRoute is returned by Dispatch when the receiver is hosted on a
	// remote server but no remote Sender has been configured.
	ErrNoRoute = xerrors.New("no route to remote server")

	// ErrRuntimeClosed is returned when dispatching messages through a
	// runtime that has been shut down.
	ErrRuntimeClosed = xerrors.New("actor runtime is closed")
)

// Actor is implemented by types that process messages delivered to their
// mailbox. The runtime invokes Receive for one message at a time, so
// implementations never need to synchronize access to their own state.
type Actor interface {
	// Receive processes a single message sent by sender. Returning true
	// signals that the actor is done and should be removed from the
	// runtime; any messages still queued in its mailbox are dropped.
	Receive(sender PID, msg interface{}) (finished bool)
}

// The Func type is an adapter to allow the use of ordinary functions as
// Actors.
type Func func(sender PID, msg interface{}) bool

// Receive calls f(sender, msg).
func (f Func) Receive(sender PID, msg interface{}) bool { return f(sender, msg) }

// Sender is implemented by types that can deliver messages to actors hosted
// on remote servers.
type Sender interface {
	// Send delivers msg from sender to the remote receiver.
	Send(sender, receiver PID, msg interface{}) error
}

// Spawner is invoked by the runtime when a message is addressed to an actor
// ID that is not running on the local server. It returns the actor to spawn
// under the receiver's PID or an error if msg cannot start a new actor.
type Spawner func(receiver, sender PID, msg interface{}) (Actor, error)

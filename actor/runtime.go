package actor

import (
	"context"
	"io/ioutil"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"golang.org/x/xerrors"
)

// RuntimeConfig encapsulates the configuration options for an actor runtime.
type RuntimeConfig struct {
	// The address of the server hosting this runtime. PIDs whose Server
	// field matches this value are delivered locally.
	Server string

	// Remote is used for delivering messages to actors hosted on other
	// servers. If not specified, dispatching to a remote PID fails with
	// ErrNoRoute.
	Remote Sender

	// Spawner, if defined, is invoked for messages addressed to actors
	// that are not running locally.
	Spawner Spawner

	// A logger instance to use. If not specified, a null logger will be
	// used instead.
	Logger *logrus.Entry
}

func (cfg *RuntimeConfig) validate() error {
	var err error
	if cfg.Server == "" {
		err = multierror.Append(err, xerrors.Errorf("server address not specified"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

type actorRef struct {
	actor   Actor
	mailbox *mailbox
}

// Runtime hosts the actors of a single server. Each actor owns a goroutine
// that drains its mailbox and invokes Receive for one message at a time.
type Runtime struct {
	cfg   RuntimeConfig
	idGen *shortid.Shortid

	ctx      context.Context
	cancelFn func()
	wg       sync.WaitGroup

	mu     sync.Mutex
	actors map[string]*actorRef
}

// NewRuntime creates a new Runtime with the specified configuration. Callers
// must invoke Close to stop all spawned actors.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("actor runtime config validation failed: %w", err)
	}

	idGen, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, xerrors.Errorf("unable to create actor ID generator: %w", err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	return &Runtime{
		cfg:      cfg,
		idGen:    idGen,
		ctx:      ctx,
		cancelFn: cancelFn,
		actors:   make(map[string]*actorRef),
	}, nil
}

// Server returns the address of the server hosting this runtime.
func (r *Runtime) Server() string { return r.cfg.Server }

// SetRemote configures the Sender used for reaching remote servers. It must
// be called before any messages are dispatched.
func (r *Runtime) SetRemote(remote Sender) { r.cfg.Remote = remote }

// NewPID allocates a new, unused PID on the specified server.
func (r *Runtime) NewPID(server string) (PID, error) {
	id, err := r.idGen.Generate()
	if err != nil {
		return PID{}, xerrors.Errorf("unable to generate actor ID: %w", err)
	}
	return PID{Server: server, Actor: id}, nil
}

// Spawn starts a new actor on the local server and returns its PID.
func (r *Runtime) Spawn(a Actor) (PID, error) {
	pid, err := r.NewPID(r.cfg.Server)
	if err != nil {
		return PID{}, err
	}
	if err = r.SpawnWithPID(pid, a); err != nil {
		return PID{}, err
	}
	return pid, nil
}

// SpawnWithPID starts actor a under the provided (local) PID.
func (r *Runtime) SpawnWithPID(pid PID, a Actor) error {
	if pid.Server != r.cfg.Server {
		return xerrors.Errorf("cannot spawn actor %s on server %q", pid, r.cfg.Server)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isClosed() {
		return ErrRuntimeClosed
	}
	if r.actors[pid.Actor] != nil {
		return xerrors.Errorf("actor %s is already running", pid)
	}

	ref := &actorRef{actor: a, mailbox: newMailbox()}
	r.actors[pid.Actor] = ref
	r.wg.Add(1)
	go r.runActor(pid, ref)
	return nil
}

// Dispatch delivers msg from sender to receiver. Messages to local actors are
// queued in the receiver's mailbox; messages to remote actors are handed to
// the configured remote Sender. Messages from the same sender to the same
// receiver are delivered in the order they were dispatched.
func (r *Runtime) Dispatch(sender, receiver PID, msg interface{}) error {
	if receiver.Server != r.cfg.Server {
		if r.cfg.Remote == nil {
			return xerrors.Errorf("dispatch to %s: %w", receiver, ErrNoRoute)
		}
		return r.cfg.Remote.Send(sender, receiver, msg)
	}
	return r.deliverLocal(sender, receiver, msg)
}

func (r *Runtime) deliverLocal(sender, receiver PID, msg interface{}) error {
	r.mu.Lock()
	if r.isClosed() {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}

	ref := r.actors[receiver.Actor]
	if ref == nil {
		if r.cfg.Spawner == nil {
			r.mu.Unlock()
			return xerrors.Errorf("dispatch to %s: %w", receiver, ErrUnknownActor)
		}

		a, err := r.cfg.Spawner(receiver, sender, msg)
		if err != nil {
			r.mu.Unlock()
			return xerrors.Errorf("dispatch to %s: %w", receiver, err)
		}

		ref = &actorRef{actor: a, mailbox: newMailbox()}
		r.actors[receiver.Actor] = ref
		r.wg.Add(1)
		go r.runActor(receiver, ref)
		r.cfg.Logger.WithField("actor", receiver.String()).Debug("spawned actor on demand")
	}
	r.mu.Unlock()

	if !ref.mailbox.push(envelope{sender: sender, msg: msg}) {
		return xerrors.Errorf("dispatch to %s: %w", receiver, ErrUnknownActor)
	}
	return nil
}

// Stop removes the actor with the specified PID. Any queued messages are
// dropped.
func (r *Runtime) Stop(pid PID) {
	r.mu.Lock()
	ref := r.actors[pid.Actor]
	delete(r.actors, pid.Actor)
	r.mu.Unlock()

	if ref != nil {
		ref.mailbox.close()
	}
}

// IsRunning returns true if the actor with the specified PID is hosted by
// this runtime.
func (r *Runtime) IsRunning(pid PID) bool {
	if pid.Server != r.cfg.Server {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actors[pid.Actor] != nil
}

// Close stops all actors and waits for their goroutines to exit.
func (r *Runtime) Close() error {
	r.mu.Lock()
	r.cancelFn()
	for id, ref := range r.actors {
		ref.mailbox.close()
		delete(r.actors, id)
	}
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Runtime) isClosed() bool {
	select {
	case <-r.ctx.Done():
		return true
	default:
		return false
	}
}

// runActor implements the message loop for a single actor.
func (r *Runtime) runActor(pid PID, ref *actorRef) {
	defer r.wg.Done()
	for {
		select {
		case <-ref.mailbox.notifyCh:
		case <-ref.mailbox.doneCh:
			return
		case <-r.ctx.Done():
			return
		}

		for {
			env, ok := ref.mailbox.pop()
			if !ok {
				break
			}

			if r.receive(pid, ref.actor, env) {
				r.Stop(pid)
				return
			}
		}
	}
}

// receive invokes the actor's Receive method. A panic while processing a
// message stops the actor.
func (r *Runtime) receive(pid PID, a Actor, env envelope) (finished bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.Logger.WithFields(logrus.Fields{
				"actor": pid.String(),
				"err":   rec,
			}).Error("actor panicked while processing message; stopping actor")
			finished = true
		}
	}()

	return a.Receive(env.sender, env.msg)
}

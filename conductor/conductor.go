// Package conductor implements the actor that coordinates the execution of
// a single job across a set of workers.
package conductor

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/protocol"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Conductor is an actor that drives a job through its execution states.
type Conductor struct {
	st      *State
	current ExecutionState
}

// New creates a conductor for the job described by cfg. The conductor sends
// messages to its workers using self as the sender PID.
func New(self actor.PID, cfg Config) (*Conductor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("conductor config validation failed: %w", err)
	}

	st := NewState(self, cfg)
	st.publish(stateInitial)
	return &Conductor{
		st:      st,
		current: NewInitialState(st),
	}, nil
}

// State returns the shared state of the job.
func (c *Conductor) State() *State { return c.st }

// Current returns the active execution state.
func (c *Conductor) Current() ExecutionState { return c.current }

// Receive implements actor.Actor. It applies at most one state transition
// per message and reports the conductor as finished once it reaches a
// terminal state with no workers left to clean up.
func (c *Conductor) Receive(sender actor.PID, msg interface{}) bool {
	var next ExecutionState
	switch m := msg.(type) {
	case protocol.Cancel:
		if m.Reason != "" {
			c.st.logger.WithField("reason", m.Reason).Info("cancellation requested")
		}
		next = c.current.Cancel(sender)
	case protocol.ConductorMessage:
		next = c.current.Receive(sender, m)
	default:
		if IsTerminal(c.current) {
			c.st.logger.WithFields(logrus.Fields{
				"state":  c.current.Name(),
				"sender": sender.String(),
				"msg":    messageName(msg),
			}).Warn("ignoring unsupported message")
			break
		}
		next = c.st.violation(c.current.Name(), sender, msg)
	}

	if next != nil {
		c.st.logger.WithFields(logrus.Fields{
			"from":      c.current.Name(),
			"state":     next.Name(),
			"superstep": c.st.superstep,
		}).Debug("state transition")
		c.current = next
	}

	return IsTerminal(c.current) && len(c.st.workers) == 0
}

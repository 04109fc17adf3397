package actor

import "fmt"

// PID identifies an actor within the cluster. PIDs are plain values that can
// be compared and used as map keys.
type PID struct {
	// Server is the address of the server that hosts the actor.
	Server string `msgpack:"s" json:"server"`

	// Actor is the ID of the actor on its server.
	Actor string `msgpack:"a" json:"actor"`
}

// IsZero returns true if p is the zero PID.
func (p PID) IsZero() bool { return p.Server == "" && p.Actor == "" }

// String implements fmt.Stringer.
func (p PID) String() string { return fmt.Sprintf("%s/%s", p.Server, p.Actor) }

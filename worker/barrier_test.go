package worker

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/graph/message"
	"github.com/pregelhq/pregel/protocol"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(BarrierTestSuite))

type BarrierTestSuite struct{}

func (s *BarrierTestSuite) TestBarrier(c *gc.C) {
	p1 := actor.PID{Server: "a", Actor: "1"}
	p2 := actor.PID{Server: "b", Actor: "2"}
	b := newStepBarrier(2)

	c.Assert(b.Ready(-1), gc.Equals, true)
	c.Assert(b.Ready(0), gc.Equals, false)

	c.Assert(b.Add(p1, protocol.VertexMessages{Superstep: 0}), gc.Equals, true)
	c.Assert(b.Add(p1, protocol.VertexMessages{Superstep: 0}), gc.Equals, false)
	c.Assert(b.Ready(0), gc.Equals, false)

	// An early batch for the next superstep is kept aside.
	c.Assert(b.Add(p1, protocol.VertexMessages{Superstep: 1}), gc.Equals, true)
	c.Assert(b.Pending(), gc.Equals, 2)

	batch := []protocol.VertexMessage{{Dst: "v"}}
	c.Assert(b.Add(p2, protocol.VertexMessages{Superstep: 0, Messages: batch}), gc.Equals, true)
	c.Assert(b.Ready(0), gc.Equals, true)

	got := b.Take(0)
	c.Assert(got, gc.HasLen, 2)
	c.Assert(got[p2], gc.DeepEquals, batch)
	c.Assert(b.Pending(), gc.Equals, 1)
	c.Assert(b.Ready(1), gc.Equals, false)
}

func (s *BarrierTestSuite) TestOutboxCombinesMessages(c *gc.C) {
	minFn := func(a, b message.Message) message.Message {
		if b.(intMsg) < a.(intMsg) {
			return b
		}
		return a
	}
	o := newOutbox(2, minFn)
	o.Add(1, "y", intMsg(4))
	o.Add(1, "x", intMsg(7))
	o.Add(1, "y", intMsg(2))
	o.Add(1, "y", intMsg(9))

	var dsts []string
	var vals []intMsg
	err := o.Drain(1, func(dst string, msg message.Message) error {
		dsts = append(dsts, dst)
		vals = append(vals, msg.(intMsg))
		return nil
	})
	c.Assert(err, gc.IsNil)
	c.Assert(dsts, gc.DeepEquals, []string{"x", "y"})
	c.Assert(vals, gc.DeepEquals, []intMsg{7, 2})

	// Draining resets the buffer.
	err = o.Drain(1, func(string, message.Message) error {
		c.Fatal("expected outbox to be empty")
		return nil
	})
	c.Assert(err, gc.IsNil)
}

func (s *BarrierTestSuite) TestOutboxWithoutCombiner(c *gc.C) {
	o := newOutbox(1, nil)
	o.Add(0, "x", intMsg(1))
	o.Add(0, "x", intMsg(2))

	var vals []intMsg
	err := o.Drain(0, func(_ string, msg message.Message) error {
		vals = append(vals, msg.(intMsg))
		return nil
	})
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []intMsg{1, 2})
}

type intMsg int

func (intMsg) Type() string { return "int" }

package worker

import (
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/protocol"
)

// stepBarrier collects the VertexMessages batches that peers send at the end
// of each superstep. Every peer sends exactly one batch per superstep, so a
// worker can execute superstep n as soon as it holds a batch for superstep
// n-1 from each of its peers. Batches for later supersteps may arrive early
// and are kept until they are needed.
type stepBarrier struct {
	numPeers int
	batches  map[int]map[actor.PID][]protocol.VertexMessage
}

func newStepBarrier(numPeers int) *stepBarrier {
	return &stepBarrier{
		numPeers: numPeers,
		batches:  make(map[int]map[actor.PID][]protocol.VertexMessage),
	}
}

// Add records the batch that peer sent for a superstep. It returns false if
// peer already sent a batch for the same superstep.
func (b *stepBarrier) Add(peer actor.PID, batch protocol.VertexMessages) bool {
	received := b.batches[batch.Superstep]
	if received == nil {
		received = make(map[actor.PID][]protocol.VertexMessage)
		b.batches[batch.Superstep] = received
	}
	if _, dup := received[peer]; dup {
		return false
	}
	received[peer] = batch.Messages
	return true
}

// Ready returns true if every peer has sent its batch for superstep. There
// is nothing to wait for before the first superstep.
func (b *stepBarrier) Ready(superstep int) bool {
	if superstep < 0 {
		return true
	}
	return len(b.batches[superstep]) == b.numPeers
}

// Take removes and returns the batches received for superstep.
func (b *stepBarrier) Take(superstep int) map[actor.PID][]protocol.VertexMessage {
	batches := b.batches[superstep]
	delete(b.batches, superstep)
	return batches
}

// Pending returns the number of supersteps with buffered batches.
func (b *stepBarrier) Pending() int { return len(b.batches) }

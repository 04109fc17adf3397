package worker

import (
	"sort"
	"sync"

	"github.com/pregelhq/pregel/graph/message"
)

// outbox buffers the messages that the vertices of a partition send to
// vertices owned by other workers during a superstep. Compute functions run
// concurrently, so access is serialized with a mutex.
type outbox struct {
	mu       sync.Mutex
	combiner message.Combiner
	perPeer  []map[string][]message.Message
}

func newOutbox(numWorkers int, combiner message.Combiner) *outbox {
	perPeer := make([]map[string][]message.Message, numWorkers)
	for i := range perPeer {
		perPeer[i] = make(map[string][]message.Message)
	}
	return &outbox{combiner: combiner, perPeer: perPeer}
}

// Add queues msg for vertex dst owned by the worker at index peer. If a
// combiner is configured, at most one message per destination is kept.
func (o *outbox) Add(peer int, dst string, msg message.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending := o.perPeer[peer]
	if o.combiner != nil && len(pending[dst]) != 0 {
		pending[dst][0] = o.combiner(pending[dst][0], msg)
		return
	}
	pending[dst] = append(pending[dst], msg)
}

// Drain removes the messages queued for peer and passes them to visitFn in
// destination order.
func (o *outbox) Drain(peer int, visitFn func(dst string, msg message.Message) error) error {
	o.mu.Lock()
	pending := o.perPeer[peer]
	o.perPeer[peer] = make(map[string][]message.Message)
	o.mu.Unlock()

	dsts := make([]string, 0, len(pending))
	for dst := range pending {
		dsts = append(dsts, dst)
	}
	sort.Strings(dsts)

	for _, dst := range dsts {
		for _, msg := range pending[dst] {
			if err := visitFn(dst, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

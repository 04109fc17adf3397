package actor

import "sync"

type envelope struct {
	sender PID
	msg    interface{}
}

// mailbox is an unbounded FIFO queue of envelopes. Pushes never block so
// that actors can message each other (and themselves) from inside Receive
// without deadlocking.
type mailbox struct {
	mu     sync.Mutex
	queue  []envelope
	closed bool

	notifyCh chan struct{}
	doneCh   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		notifyCh: make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
}

// push appends an envelope to the mailbox. It returns false if the mailbox
// has been closed.
func (m *mailbox) push(env envelope) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, env)
	m.mu.Unlock()

	select {
	case m.notifyCh <- struct{}{}:
	default: // a wake-up is already pending
	}
	return true
}

// pop removes the oldest envelope from the mailbox.
func (m *mailbox) pop() (envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return envelope{}, false
	}
	env := m.queue[0]
	m.queue[0] = envelope{}
	m.queue = m.queue[1:]
	return env, true
}

// close marks the mailbox as closed and drops any queued envelopes.
func (m *mailbox) close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.doneCh)
	}
	m.queue = nil
	m.mu.Unlock()
}

package graph

import (
	"sync"
	"sync/atomic"

	"github.com/pregelhq/pregel/aggregator"
	"github.com/pregelhq/pregel/graph/message"
	"golang.org/x/xerrors"
)

var (
	// ErrUnknownEdgeSource is returned by AddEdge when the source vertex
	// is not present in the partition.
	ErrUnknownEdgeSource = xerrors.New("source vertex is not part of the partition")

	// ErrDestinationIsLocal is returned by Relayer instances to indicate
	// that a message destination is actually owned by the local partition.
	ErrDestinationIsLocal = xerrors.New("message destination is assigned to the local partition")

	// ErrInvalidMessageDestination is returned by calls to SendMessage and
	// BroadcastToNeighbors when the destination cannot be resolved to any
	// (local or remote) vertex.
	ErrInvalidMessageDestination = xerrors.New("invalid message destination")
)

// Relayer is implemented by types that can relay messages to vertices that
// are owned by a remote partition.
type Relayer interface {
	// Relay a message to a vertex that is not known locally. Calls to
	// Relay must return ErrDestinationIsLocal if the provided dst value is
	// not a valid remote destination.
	Relay(dst string, msg message.Message) error
}

// The RelayerFunc type is an adapter to allow the use of ordinary functions as
// Relayers.
type RelayerFunc func(string, message.Message) error

// Relay calls f(dst, msg).
func (f RelayerFunc) Relay(dst string, msg message.Message) error {
	return f(dst, msg)
}

// ComputeFunc is invoked by a partition for each active vertex when executing
// a superstep. The function may update the vertex value, send messages to
// other vertices and freeze the vertex to mark it as inactive.
type ComputeFunc func(p *Partition, v *Vertex, msgIt message.Iterator) error

// Vertex represents a vertex in a Partition.
type Vertex struct {
	id       string
	value    interface{}
	active   bool
	msgQueue [2]message.Queue
	edges    []*Edge
}

// ID returns the vertex ID.
func (v *Vertex) ID() string { return v.id }

// Edges returns the list of outgoing edges from this vertex.
func (v *Vertex) Edges() []*Edge { return v.edges }

// Freeze marks the vertex as inactive. Inactive vertices will not be processed
// in the following supersteps unless they receive a message in which case they
// will be re-activated.
func (v *Vertex) Freeze() { v.active = false }

// Active returns true if the vertex will be processed in the next superstep
// even if it does not receive any messages.
func (v *Vertex) Active() bool { return v.active }

// Value returns the value associated with this vertex.
func (v *Vertex) Value() interface{} { return v.value }

// SetValue sets the value associated with this vertex.
func (v *Vertex) SetValue(val interface{}) { v.value = val }

// Edge represents a directed edge in a Partition.
type Edge struct {
	value interface{}
	dstID string
}

// DstID returns the vertex ID that corresponds to this edge's target endpoint.
func (e *Edge) DstID() string { return e.dstID }

// Value returns the value associated with this edge.
func (e *Edge) Value() interface{} { return e.value }

// SetValue sets the value associated with this edge.
func (e *Edge) SetValue(val interface{}) { e.value = val }

// Partition holds the subset of a graph's vertices that are owned by a single
// worker together with their outgoing edges. Each vertex has two message
// queues: messages sent during superstep n are written to queue (n+1)%2 and
// read back during superstep n+1.
type Partition struct {
	superstep int
	numEdges  int

	aggregators *aggregator.Set
	vertices    map[string]*Vertex
	computeFn   ComputeFunc

	queueFactory message.QueueFactory
	relayer      Relayer

	wg              sync.WaitGroup
	vertexCh        chan *Vertex
	errCh           chan error
	stepCompletedCh chan struct{}
	activeInStep    int64
	pendingInStep   int64
	sentInStep      int64
}

// NewPartition creates a new Partition instance using the specified
// configuration. It is important for callers to invoke Close() on the
// returned partition when they are done using it.
func NewPartition(cfg PartitionConfig) (*Partition, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("partition config validation failed: %w", err)
	}

	p := &Partition{
		computeFn:    cfg.ComputeFn,
		queueFactory: cfg.QueueFactory,
		aggregators:  aggregator.NewSet(),
		vertices:     make(map[string]*Vertex),
	}
	p.startWorkers(cfg.ComputeWorkers)

	return p, nil
}

// Close releases any resources associated with the partition.
func (p *Partition) Close() error {
	close(p.vertexCh)
	p.wg.Wait()

	return p.Reset()
}

// Reset the state of the partition by removing any existing vertices or
// aggregators and resetting the superstep counter.
func (p *Partition) Reset() error {
	p.superstep = 0
	p.numEdges = 0
	for _, v := range p.vertices {
		for i := 0; i < 2; i++ {
			if err := v.msgQueue[i].Close(); err != nil {
				return xerrors.Errorf("closing message queue #%d for vertex %v: %w", i, v.ID(), err)
			}
		}
	}
	p.vertices = make(map[string]*Vertex)
	p.aggregators = aggregator.NewSet()
	return nil
}

// Vertices returns the partition vertices as a map where the key is the
// vertex ID.
func (p *Partition) Vertices() map[string]*Vertex { return p.vertices }

// NumVertices returns the number of vertices in the partition.
func (p *Partition) NumVertices() int { return len(p.vertices) }

// NumEdges returns the number of edges in the partition.
func (p *Partition) NumEdges() int { return p.numEdges }

// AddVertex inserts a new vertex with the specified id and initial value into
// the partition. If the vertex already exists, AddVertex will just overwrite
// its value with the provided initValue.
func (p *Partition) AddVertex(id string, initValue interface{}) {
	v := p.vertices[id]
	if v == nil {
		v = &Vertex{
			id: id,
			msgQueue: [2]message.Queue{
				p.queueFactory(),
				p.queueFactory(),
			},
			active: true,
		}
		p.vertices[id] = v
	}

	v.SetValue(initValue)
}

// AddEdge inserts a directed edge from src to destination and annotates it
// with the specified initValue. Edges are owned by their source vertex, so
// srcID must resolve to a local vertex while dstID may be remote.
func (p *Partition) AddEdge(srcID, dstID string, initValue interface{}) error {
	srcVert := p.vertices[srcID]
	if srcVert == nil {
		return xerrors.Errorf("create edge from %q to %q: %w", srcID, dstID, ErrUnknownEdgeSource)
	}

	srcVert.edges = append(srcVert.edges, &Edge{
		dstID: dstID,
		value: initValue,
	})
	p.numEdges++
	return nil
}

// Aggregators returns the set of aggregators registered with the partition.
func (p *Partition) Aggregators() *aggregator.Set { return p.aggregators }

// Aggregator returns the aggregator with the specified name or nil if the
// aggregator does not exist.
func (p *Partition) Aggregator(name string) aggregator.Aggregator { return p.aggregators.Get(name) }

// RegisterRelayer configures a Relayer that the partition will invoke when
// attempting to deliver a message to a vertex that is not known locally but
// could be owned by a remote partition.
func (p *Partition) RegisterRelayer(relayer Relayer) { p.relayer = relayer }

// BroadcastToNeighbors is a helper function that broadcasts a single message
// to each neighbor of a particular vertex. Messages are queued for delivery
// and will be processed by recipients in the next superstep.
func (p *Partition) BroadcastToNeighbors(v *Vertex, msg message.Message) error {
	for _, e := range v.edges {
		if err := p.SendMessage(e.dstID, msg); err != nil {
			return err
		}
	}

	return nil
}

// SendMessage attempts to deliver a message to the vertex with the specified
// destination ID. Messages are queued for delivery and will be processed by
// recipients in the next superstep.
//
// If the destination ID is not known locally and a Relayer has been
// registered, SendMessage delegates message delivery to it. Otherwise, an
// ErrInvalidMessageDestination is returned to the caller.
func (p *Partition) SendMessage(dstID string, msg message.Message) error {
	if dstVert := p.vertices[dstID]; dstVert != nil {
		queueIndex := (p.superstep + 1) % 2
		if err := dstVert.msgQueue[queueIndex].Enqueue(msg); err != nil {
			return err
		}
		atomic.AddInt64(&p.sentInStep, 1)
		return nil
	}

	if p.relayer != nil {
		err := p.relayer.Relay(dstID, msg)
		if err == nil {
			atomic.AddInt64(&p.sentInStep, 1)
		}
		if !xerrors.Is(err, ErrDestinationIsLocal) {
			return err
		}
	}

	return xerrors.Errorf("message cannot be delivered to %q: %w", dstID, ErrInvalidMessageDestination)
}

// DeliverMessage enqueues a message that a remote partition sent during
// superstep step so that it is processed during superstep step+1.
func (p *Partition) DeliverMessage(dstID string, step int, msg message.Message) error {
	dstVert := p.vertices[dstID]
	if dstVert == nil {
		return xerrors.Errorf("message cannot be delivered to %q: %w", dstID, ErrInvalidMessageDestination)
	}

	queueIndex := (step + 1) % 2
	return dstVert.msgQueue[queueIndex].Enqueue(msg)
}

// Superstep returns the current superstep value.
func (p *Partition) Superstep() int { return p.superstep }

// SentMessages returns the number of messages sent by the vertices of this
// partition during the last executed superstep.
func (p *Partition) SentMessages() int { return int(atomic.LoadInt64(&p.sentInStep)) }

// Step executes superstep n and returns back the number of vertices that were
// processed either because they were still active or because they received
// a message.
func (p *Partition) Step(n int) (int, error) {
	p.superstep = n
	p.activeInStep = 0
	p.sentInStep = 0
	p.pendingInStep = int64(len(p.vertices))

	// No work required.
	if p.pendingInStep == 0 {
		return 0, nil
	}

	for _, v := range p.vertices {
		p.vertexCh <- v
	}

	// Block until worker pool has finished processing all vertices.
	<-p.stepCompletedCh

	var err error
	select {
	case err = <-p.errCh:
	default: // no error available
	}

	return int(p.activeInStep), err
}

// startWorkers allocates the required channels and spins up numWorkers to
// execute each superstep.
func (p *Partition) startWorkers(numWorkers int) {
	p.vertexCh = make(chan *Vertex)
	p.errCh = make(chan error, 1)
	p.stepCompletedCh = make(chan struct{})

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.stepWorker()
	}
}

// stepWorker polls vertexCh for incoming vertices and executes the configured
// ComputeFunc for each one. The worker automatically exits when vertexCh gets
// closed.
func (p *Partition) stepWorker() {
	defer p.wg.Done()
	for v := range p.vertexCh {
		buffer := p.superstep % 2
		if v.active || v.msgQueue[buffer].PendingMessages() {
			_ = atomic.AddInt64(&p.activeInStep, 1)
			v.active = true
			if err := p.computeFn(p, v, v.msgQueue[buffer].Messages()); err != nil {
				tryEmitError(p.errCh, xerrors.Errorf("running compute function for vertex %q failed: %w", v.ID(), err))
			} else if err := v.msgQueue[buffer].DiscardMessages(); err != nil {
				tryEmitError(p.errCh, xerrors.Errorf("discarding unprocessed messages for vertex %q failed: %w", v.ID(), err))
			}
		}
		if atomic.AddInt64(&p.pendingInStep, -1) == 0 {
			p.stepCompletedCh <- struct{}{}
		}
	}
}

func tryEmitError(errCh chan<- error, err error) {
	select {
	case errCh <- err: // queued error
	default: // channel already contains another error
	}
}

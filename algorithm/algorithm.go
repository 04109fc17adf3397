// Package algorithm defines the SDK that graph algorithms implement in order
// to be executed by the conductor and its workers.
package algorithm

import (
	"sort"
	"strconv"
	"sync"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/pregelhq/pregel/aggregator"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
	"golang.org/x/xerrors"
)

// ErrUnknownAlgorithm is returned by Registry.New when no factory has been
// registered for the requested algorithm name.
var ErrUnknownAlgorithm = xerrors.New("unknown algorithm")

// Algorithm is implemented by graph algorithms that can be executed on a
// partitioned graph. The same Algorithm value is used by every worker of a
// job as well as by its conductor, so implementations must keep all
// per-vertex state in the vertex values.
type Algorithm interface {
	// Compute is invoked for each active vertex of a partition when
	// executing a superstep.
	Compute(p *graph.Partition, v *graph.Vertex, msgIt message.Iterator) error

	// Combiner returns an optional function for collapsing messages
	// addressed to the same vertex. It may return nil.
	Combiner() message.Combiner

	// RegisterAggregators registers the aggregators used by the algorithm.
	RegisterAggregators(set *aggregator.Set)

	// PostSuperstep is invoked by the conductor once all workers have
	// completed a superstep and their aggregator deltas have been merged
	// into aggs. It returns false if the computation should stop. Any
	// changes to aggs are broadcast to the workers before the next
	// superstep.
	PostSuperstep(superstep int, aggs *aggregator.Set, activeVertices int) (bool, error)

	// Serializer returns the serializer for the messages exchanged between
	// vertices.
	Serializer() Serializer

	// Result returns the value that gets persisted for a vertex once the
	// computation completes.
	Result(v *graph.Vertex) interface{}
}

// Serializer is implemented by types that can convert vertex messages to and
// from the any.Any values carried by the wire protocol.
type Serializer interface {
	Serialize(msg message.Message) (*any.Any, error)
	Unserialize(payload *any.Any) (message.Message, error)
}

// Params holds the user-defined parameters of a job.
type Params map[string]string

// String returns the value of the named parameter or def if it is missing.
func (p Params) String(name, def string) string {
	if v, ok := p[name]; ok && v != "" {
		return v
	}
	return def
}

// Float64 returns the value of the named parameter parsed as a float64 or def
// if it is missing.
func (p Params) Float64(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, xerrors.Errorf("parameter %q: %w", name, err)
	}
	return f, nil
}

// Int returns the value of the named parameter parsed as an int or def if it
// is missing.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, xerrors.Errorf("parameter %q: %w", name, err)
	}
	return n, nil
}

// Factory creates a new Algorithm instance from a set of job parameters.
type Factory func(params Params) (Algorithm, error)

// Registry maps algorithm names to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates name with factory, replacing any existing entry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// New creates an instance of the named algorithm.
func (r *Registry) New(name string, params Params) (Algorithm, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()

	if factory == nil {
		return nil, xerrors.Errorf("%q: %w", name, ErrUnknownAlgorithm)
	}

	alg, err := factory(params)
	if err != nil {
		return nil, xerrors.Errorf("create algorithm %q: %w", name, err)
	}
	return alg, nil
}

// Names returns the sorted list of registered algorithms.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeepRunning decides whether another superstep should be executed after
// superstep completed. The computation stops when the algorithm asks for
// it, when no vertex was active and no message was sent, or when the next
// superstep would reach maxSupersteps.
func KeepRunning(alg Algorithm, superstep int, aggs *aggregator.Set, activeVertices, sentMessages, maxSupersteps int) (bool, error) {
	keepRunning, err := alg.PostSuperstep(superstep, aggs, activeVertices)
	if err != nil {
		return false, err
	}

	switch {
	case !keepRunning:
		return false, nil
	case activeVertices == 0 && sentMessages == 0:
		return false, nil
	case maxSupersteps > 0 && superstep+1 >= maxSupersteps:
		return false, nil
	}
	return true, nil
}

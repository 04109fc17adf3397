// Package sssp implements a single-source shortest path algorithm for graphs
// with non-negative integer edge weights.
package sssp

import (
	"encoding/binary"
	"math"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/pregelhq/pregel/aggregator"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
	"golang.org/x/xerrors"
)

// Name is the name under which the algorithm is registered.
const Name = "sssp"

const (
	costTypeURL     = "sssp/cost"
	reachedAggr     = "reached"
	unreachableCost = math.MaxInt64
)

// PathCostMessage is used to advertise the cost of a path through a vertex.
type PathCostMessage struct {
	// The ID of the vertex this cost announcement originates from.
	FromID string

	// The cost of the path from the source vertex via FromID.
	Cost int
}

// Type returns the type of this message.
func (PathCostMessage) Type() string { return "cost" }

// Result describes the shortest path from the source to a vertex.
type Result struct {
	Cost int    `json:"cost"`
	Via  string `json:"via,omitempty"`
}

type pathState struct {
	minDist    int
	prevInPath string
}

// ShortestPath implements algorithm.Algorithm.
type ShortestPath struct {
	srcID string
}

// New creates a ShortestPath instance that computes the paths from the vertex
// specified by the source job parameter.
func New(params algorithm.Params) (algorithm.Algorithm, error) {
	srcID := params.String("source", "")
	if srcID == "" {
		return nil, xerrors.New("source vertex not specified")
	}
	return &ShortestPath{srcID: srcID}, nil
}

// Compute implements algorithm.Algorithm.
func (sp *ShortestPath) Compute(p *graph.Partition, v *graph.Vertex, msgIt message.Iterator) error {
	if p.Superstep() == 0 {
		v.SetValue(&pathState{minDist: unreachableCost})
	}

	minDist := unreachableCost
	if v.ID() == sp.srcID {
		minDist = 0
	}

	// Keep the cheapest announcement received from our neighbors.
	var via string
	for msgIt.Next() {
		m := msgIt.Message().(PathCostMessage)
		if m.Cost < minDist {
			minDist = m.Cost
			via = m.FromID
		}
	}

	st := v.Value().(*pathState)
	if minDist < st.minDist {
		if st.minDist == unreachableCost {
			p.Aggregator(reachedAggr).Aggregate(1)
		}
		st.minDist = minDist
		st.prevInPath = via
		for _, e := range v.Edges() {
			costMsg := PathCostMessage{
				FromID: v.ID(),
				Cost:   minDist + e.Value().(int),
			}
			if err := p.SendMessage(e.DstID(), costMsg); err != nil {
				return err
			}
		}
	}

	// We are done unless we receive a better path announcement.
	v.Freeze()
	return nil
}

// Combiner implements algorithm.Algorithm. Only the cheapest announcement is
// retained.
func (*ShortestPath) Combiner() message.Combiner {
	return func(a, b message.Message) message.Message {
		ma, mb := a.(PathCostMessage), b.(PathCostMessage)
		if mb.Cost < ma.Cost || (mb.Cost == ma.Cost && mb.FromID < ma.FromID) {
			return mb
		}
		return ma
	}
}

// RegisterAggregators implements algorithm.Algorithm. The reached aggregator
// counts the vertices with a known path to the source.
func (*ShortestPath) RegisterAggregators(set *aggregator.Set) {
	set.Register(reachedAggr, new(aggregator.IntAccumulator))
}

// PostSuperstep implements algorithm.Algorithm. The computation ends once no
// vertex is active any more.
func (*ShortestPath) PostSuperstep(_ int, _ *aggregator.Set, activeVertices int) (bool, error) {
	return activeVertices != 0, nil
}

// Serializer implements algorithm.Algorithm.
func (*ShortestPath) Serializer() algorithm.Serializer { return serializer{} }

// Result implements algorithm.Algorithm. Unreachable vertices yield nil.
func (*ShortestPath) Result(v *graph.Vertex) interface{} {
	st, ok := v.Value().(*pathState)
	if !ok || st.minDist == unreachableCost {
		return nil
	}
	return Result{Cost: st.minDist, Via: st.prevInPath}
}

type serializer struct{}

// Serialize encodes the cost as a varint followed by the origin vertex ID.
func (serializer) Serialize(msg message.Message) (*any.Any, error) {
	m, ok := msg.(PathCostMessage)
	if !ok {
		return nil, xerrors.Errorf("serialize: unknown message type %T", msg)
	}

	buf := make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+len(m.FromID))
	nBytes := binary.PutVarint(buf, int64(m.Cost))
	buf = append(buf[:nBytes], m.FromID...)
	return &any.Any{TypeUrl: costTypeURL, Value: buf}, nil
}

func (serializer) Unserialize(payload *any.Any) (message.Message, error) {
	if payload.TypeUrl != costTypeURL {
		return nil, xerrors.Errorf("unserialize: unknown type %q", payload.TypeUrl)
	}

	cost, n := binary.Varint(payload.Value)
	if n <= 0 {
		return nil, xerrors.New("unserialize: malformed cost payload")
	}
	return PathCostMessage{Cost: int(cost), FromID: string(payload.Value[n:])}, nil
}

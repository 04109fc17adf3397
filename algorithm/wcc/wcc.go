// Package wcc labels every vertex with the smallest vertex ID of the weakly
// connected component it belongs to. Jobs should load their graph with
// undirected edges.
package wcc

import (
	"github.com/golang/protobuf/ptypes/any"
	"github.com/pregelhq/pregel/aggregator"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
	"golang.org/x/xerrors"
)

// Name is the name under which the algorithm is registered.
const Name = "wcc"

const labelTypeURL = "wcc/label"

// LabelMessage advertises the component label of a vertex.
type LabelMessage struct {
	Label string
}

// Type returns the type of this message.
func (LabelMessage) Type() string { return "label" }

// Components implements algorithm.Algorithm.
type Components struct{}

// New creates a Components instance. WCC does not accept any parameters.
func New(algorithm.Params) (algorithm.Algorithm, error) {
	return new(Components), nil
}

// Compute implements algorithm.Algorithm.
func (*Components) Compute(p *graph.Partition, v *graph.Vertex, msgIt message.Iterator) error {
	v.Freeze()
	if p.Superstep() == 0 {
		v.SetValue(v.ID())
		return p.BroadcastToNeighbors(v, LabelMessage{Label: v.ID()})
	}

	label := v.Value().(string)
	minLabel := label
	for msgIt.Next() {
		if l := msgIt.Message().(LabelMessage).Label; l < minLabel {
			minLabel = l
		}
	}

	if minLabel == label {
		return nil
	}
	v.SetValue(minLabel)
	return p.BroadcastToNeighbors(v, LabelMessage{Label: minLabel})
}

// Combiner implements algorithm.Algorithm.
func (*Components) Combiner() message.Combiner {
	return func(a, b message.Message) message.Message {
		if b.(LabelMessage).Label < a.(LabelMessage).Label {
			return b
		}
		return a
	}
}

// RegisterAggregators implements algorithm.Algorithm.
func (*Components) RegisterAggregators(*aggregator.Set) {}

// PostSuperstep implements algorithm.Algorithm.
func (*Components) PostSuperstep(int, *aggregator.Set, int) (bool, error) { return true, nil }

// Serializer implements algorithm.Algorithm.
func (*Components) Serializer() algorithm.Serializer { return serializer{} }

// Result implements algorithm.Algorithm.
func (*Components) Result(v *graph.Vertex) interface{} { return v.Value() }

type serializer struct{}

func (serializer) Serialize(msg message.Message) (*any.Any, error) {
	m, ok := msg.(LabelMessage)
	if !ok {
		return nil, xerrors.Errorf("serialize: unknown message type %T", msg)
	}
	return &any.Any{TypeUrl: labelTypeURL, Value: []byte(m.Label)}, nil
}

func (serializer) Unserialize(payload *any.Any) (message.Message, error) {
	if payload.TypeUrl != labelTypeURL {
		return nil, xerrors.Errorf("unserialize: unknown type %q", payload.TypeUrl)
	}
	return LabelMessage{Label: string(payload.Value)}, nil
}

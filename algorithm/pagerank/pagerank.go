// Package pagerank implements the iterative version of the PageRank algorithm
// on top of the algorithm SDK.
package pagerank

import (
	"encoding/binary"
	"math"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/hashicorp/go-multierror"
	"github.com/pregelhq/pregel/aggregator"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
	"golang.org/x/xerrors"
)

// Name is the name under which the algorithm is registered.
const Name = "pagerank"

const (
	pageCountAggr = "page_count"
	sadAggr       = "SAD"
	residual0Aggr = "residual_0"
	residual1Aggr = "residual_1"

	scoreTypeURL = "pagerank/score"
)

// Config encapsulates the parameters of the PageRank algorithm.
type Config struct {
	// DampingFactor is the probability that a random surfer will click on
	// one of the outgoing links on the page they are currently visiting
	// instead of teleporting to a random page in the graph. Defaults to
	// 0.85.
	DampingFactor float64

	// The algorithm keeps executing until the sum of absolute differences
	// (SAD) of all scores between two supersteps becomes less than
	// MinSADForConvergence. Defaults to 0.001.
	MinSADForConvergence float64
}

func (c *Config) validate() error {
	var err error
	if c.DampingFactor < 0 || c.DampingFactor > 1.0 {
		err = multierror.Append(err, xerrors.New("damping_factor must be in the range (0, 1]"))
	} else if c.DampingFactor == 0 {
		c.DampingFactor = 0.85
	}

	if c.MinSADForConvergence < 0 || c.MinSADForConvergence >= 1.0 {
		err = multierror.Append(err, xerrors.New("min_sad must be in the range (0, 1)"))
	} else if c.MinSADForConvergence == 0 {
		c.MinSADForConvergence = 0.001
	}

	return err
}

// ScoreMessage is used for distributing PageRank scores to neighbors.
type ScoreMessage struct {
	Score float64
}

// Type returns the type of this message.
func (ScoreMessage) Type() string { return "score" }

// PageRank implements algorithm.Algorithm.
type PageRank struct {
	cfg Config
}

// New creates a PageRank instance from the damping_factor and min_sad job
// parameters. It can be registered as an algorithm.Factory.
func New(params algorithm.Params) (algorithm.Algorithm, error) {
	var (
		cfg Config
		err error
	)
	if cfg.DampingFactor, err = params.Float64("damping_factor", 0); err != nil {
		return nil, err
	}
	if cfg.MinSADForConvergence, err = params.Float64("min_sad", 0); err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a PageRank instance using the provided config.
func NewWithConfig(cfg Config) (*PageRank, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("PageRank config validation failed: %w", err)
	}
	return &PageRank{cfg: cfg}, nil
}

// Compute implements algorithm.Algorithm.
func (pr *PageRank) Compute(p *graph.Partition, v *graph.Vertex, msgIt message.Iterator) error {
	superstep := p.Superstep()
	pageCountAgg := p.Aggregator(pageCountAggr)

	// At step 0, we use an aggregator to count the number of vertices in
	// the graph.
	if superstep == 0 {
		v.SetValue(0.0)
		pageCountAgg.Aggregate(1)
		return nil
	}

	var (
		pageCount = float64(pageCountAgg.Get().(int))
		newScore  float64
	)
	switch superstep {
	case 1:
		// Scores should add up to 1 so each vertex starts with an equal
		// share.
		newScore = 1.0 / pageCount
	default:
		newScore = (1.0 - pr.cfg.DampingFactor) / pageCount
		for msgIt.Next() {
			newScore += pr.cfg.DampingFactor * msgIt.Message().(ScoreMessage).Score
		}

		// Add accumulated residual page rank from any dead-ends
		// encountered during the previous step.
		resAggr := p.Aggregator(residualInputAccName(superstep))
		newScore += pr.cfg.DampingFactor * resAggr.Get().(float64)
	}

	absDelta := math.Abs(v.Value().(float64) - newScore)
	p.Aggregator(sadAggr).Aggregate(absDelta)
	v.SetValue(newScore)

	// Dead-ends behave as if they link to every vertex in the graph. Their
	// score is spread through an aggregator instead of a broadcast.
	numOutLinks := float64(len(v.Edges()))
	if numOutLinks == 0.0 {
		p.Aggregator(residualOutputAccName(superstep)).Aggregate(newScore / pageCount)
		return nil
	}

	return p.BroadcastToNeighbors(v, ScoreMessage{newScore / numOutLinks})
}

// Combiner implements algorithm.Algorithm. Incoming scores are summed.
func (*PageRank) Combiner() message.Combiner {
	return func(a, b message.Message) message.Message {
		return ScoreMessage{Score: a.(ScoreMessage).Score + b.(ScoreMessage).Score}
	}
}

// RegisterAggregators implements algorithm.Algorithm.
func (*PageRank) RegisterAggregators(set *aggregator.Set) {
	set.Register(pageCountAggr, new(aggregator.IntAccumulator))
	set.Register(residual0Aggr, new(aggregator.Float64Accumulator))
	set.Register(residual1Aggr, new(aggregator.Float64Accumulator))
	set.Register(sadAggr, new(aggregator.Float64Accumulator))
}

// PostSuperstep implements algorithm.Algorithm.
func (pr *PageRank) PostSuperstep(superstep int, aggs *aggregator.Set, _ int) (bool, error) {
	// Supersteps 0 and 1 are part of the algorithm initialization; the
	// predicate should only be evaluated for supersteps > 1.
	sad := aggs.Get(sadAggr).Get().(float64)
	keepRunning := !(superstep > 1 && sad < pr.cfg.MinSADForConvergence)

	// Reset the accumulators that the next superstep writes to.
	aggs.Get(sadAggr).Set(0.0)
	aggs.Get(residualOutputAccName(superstep + 1)).Set(0.0)
	return keepRunning, nil
}

// Serializer implements algorithm.Algorithm.
func (*PageRank) Serializer() algorithm.Serializer { return serializer{} }

// Result implements algorithm.Algorithm.
func (*PageRank) Result(v *graph.Vertex) interface{} { return v.Value() }

type serializer struct{}

func (serializer) Serialize(msg message.Message) (*any.Any, error) {
	score, ok := msg.(ScoreMessage)
	if !ok {
		return nil, xerrors.Errorf("serialize: unknown message type %T", msg)
	}

	scratchBuf := make([]byte, binary.MaxVarintLen64)
	nBytes := binary.PutUvarint(scratchBuf, math.Float64bits(score.Score))
	return &any.Any{TypeUrl: scoreTypeURL, Value: scratchBuf[:nBytes]}, nil
}

func (serializer) Unserialize(payload *any.Any) (message.Message, error) {
	if payload.TypeUrl != scoreTypeURL {
		return nil, xerrors.Errorf("unserialize: unknown type %q", payload.TypeUrl)
	}

	val, n := binary.Uvarint(payload.Value)
	if n <= 0 {
		return nil, xerrors.New("unserialize: malformed score payload")
	}
	return ScoreMessage{Score: math.Float64frombits(val)}, nil
}

// residualOutputAccName returns the name of the accumulator where the
// residual PageRank scores for the specified superstep are to be written to.
func residualOutputAccName(superstep int) string {
	if superstep%2 == 0 {
		return residual0Aggr
	}
	return residual1Aggr
}

// residualInputAccName returns the name of the accumulator where the
// residual PageRank scores for the specified superstep are to be read from.
func residualInputAccName(superstep int) string {
	if (superstep+1)%2 == 0 {
		return residual0Aggr
	}
	return residual1Aggr
}

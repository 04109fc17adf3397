package pagerank_test

import (
	"context"
	"math"
	"testing"

	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/algorithm/algotest"
	"github.com/pregelhq/pregel/algorithm/pagerank"
	"github.com/pregelhq/pregel/graph"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(PageRankTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites
	gc.TestingT(t)
}

type spec struct {
	descr     string
	edges     []graph.EdgeSpec
	expScores map[string]float64
}

type PageRankTestSuite struct {
}

func (s *PageRankTestSuite) TestCycle(c *gc.C) {
	s.assertPageRankScores(c, spec{
		descr: `
 (A) -> (B) -> (C)
  ^             |
  +-------------+

Expect PageRank score to be distributed evenly across the three nodes.
`,
		edges: []graph.EdgeSpec{{Src: "A", Dst: "B"}, {Src: "B", Dst: "C"}, {Src: "C", Dst: "A"}},
		expScores: map[string]float64{
			"A": 1.0 / 3.0,
			"B": 1.0 / 3.0,
			"C": 1.0 / 3.0,
		},
	})
}

func (s *PageRankTestSuite) TestBackLinks(c *gc.C) {
	s.assertPageRankScores(c, spec{
		descr: `
 (A) <-> (B) <-> (C)

Expect A and C to get the same score and B to get the largest score.
`,
		edges: []graph.EdgeSpec{
			{Src: "A", Dst: "B"}, {Src: "B", Dst: "A"},
			{Src: "B", Dst: "C"}, {Src: "C", Dst: "B"},
		},
		expScores: map[string]float64{
			"A": 0.2569,
			"B": 0.4860,
			"C": 0.2569,
		},
	})
}

func (s *PageRankTestSuite) TestDeadEnd(c *gc.C) {
	s.assertPageRankScores(c, spec{
		descr: `
 (A) -> (B) -> (C)

C is a dead-end; its score is spread across every vertex in the graph.
`,
		edges: []graph.EdgeSpec{{Src: "A", Dst: "B"}, {Src: "B", Dst: "C"}},
		expScores: map[string]float64{
			"A": 0.1842,
			"B": 0.3411,
			"C": 0.4745,
		},
	})
}

func (s *PageRankTestSuite) TestInvalidParams(c *gc.C) {
	_, err := pagerank.New(algorithm.Params{"damping_factor": "1.5"})
	c.Assert(err, gc.ErrorMatches, "(?ms).*damping_factor must be in the range.*")

	_, err = pagerank.New(algorithm.Params{"min_sad": "lots"})
	c.Assert(err, gc.ErrorMatches, `parameter "min_sad": .*`)
}

func (s *PageRankTestSuite) TestSerializer(c *gc.C) {
	alg, err := pagerank.New(nil)
	c.Assert(err, gc.IsNil)

	ser := alg.Serializer()
	payload, err := ser.Serialize(pagerank.ScoreMessage{Score: 0.125})
	c.Assert(err, gc.IsNil)
	msg, err := ser.Unserialize(payload)
	c.Assert(err, gc.IsNil)
	c.Assert(msg, gc.Equals, pagerank.ScoreMessage{Score: 0.125})

	combined := alg.Combiner()(pagerank.ScoreMessage{Score: 0.25}, pagerank.ScoreMessage{Score: 0.5})
	c.Assert(combined, gc.Equals, pagerank.ScoreMessage{Score: 0.75})
}

func (s *PageRankTestSuite) assertPageRankScores(c *gc.C, spec spec) {
	c.Log(spec.descr)

	alg, err := pagerank.New(algorithm.Params{"damping_factor": "0.85"})
	c.Assert(err, gc.IsNil)

	p, err := algorithm.NewLocalPartition(alg, 2)
	c.Assert(err, gc.IsNil)
	defer func() { _ = p.Close() }()

	src := graph.SourceSpec{Kind: graph.SourceMemory, Edges: spec.edges}
	c.Assert(graph.Load(context.TODO(), src, p, func(string) bool { return true }), gc.IsNil)

	ex := algotest.NewExecutor(alg, p, 0)
	c.Assert(ex.RunToCompletion(context.TODO()), gc.IsNil)
	c.Logf("converged after %d steps", ex.Supersteps())

	var prSum float64
	err = ex.Results(func(id string, result interface{}) error {
		score := result.(float64)
		prSum += score
		absDelta := math.Abs(score - spec.expScores[id])
		c.Assert(absDelta <= 0.01, gc.Equals, true, gc.Commentf("expected score for %v to be %f ± 0.01; got %f (abs. delta %f)", id, spec.expScores[id], score, absDelta))
		return nil
	})
	c.Assert(err, gc.IsNil)

	c.Assert((1.0-prSum) <= 0.001, gc.Equals, true, gc.Commentf("expected all pagerank scores to add up to 1.0; got %f", prSum))
}

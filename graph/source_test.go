package graph_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(SourceTestSuite))

type SourceTestSuite struct {
	p *graph.Partition
}

func (s *SourceTestSuite) SetUpTest(c *gc.C) {
	p, err := graph.NewPartition(graph.PartitionConfig{
		ComputeFn: func(*graph.Partition, *graph.Vertex, message.Iterator) error { return nil },
	})
	c.Assert(err, gc.IsNil)
	s.p = p
}

func (s *SourceTestSuite) TearDownTest(c *gc.C) {
	c.Assert(s.p.Close(), gc.IsNil)
}

func (s *SourceTestSuite) TestValidate(c *gc.C) {
	specs := []struct {
		spec   graph.SourceSpec
		expErr string
	}{
		{graph.SourceSpec{Kind: "bogus"}, `unsupported graph source kind "bogus"`},
		{graph.SourceSpec{Kind: graph.SourceMemory}, "memory graph source does not define any vertices or edges"},
		{graph.SourceSpec{Kind: graph.SourceEdgeList}, "edge list graph source requires a path"},
		{graph.SourceSpec{Kind: graph.SourceGenerated}, "generated graph source requires a positive number of vertices"},
	}

	for i, spec := range specs {
		c.Assert(spec.spec.Validate(), gc.ErrorMatches, spec.expErr, gc.Commentf("spec %d", i))
	}
}

func (s *SourceTestSuite) TestLoadMemoryOwnedSubset(c *gc.C) {
	spec := graph.SourceSpec{
		Kind:     graph.SourceMemory,
		Vertices: []string{"lonely"},
		Edges: []graph.EdgeSpec{
			{Src: "a", Dst: "b", Weight: 3},
			{Src: "b", Dst: "c"},
			{Src: "c", Dst: "a"},
		},
	}

	owned := map[string]bool{"a": true, "c": true, "lonely": true}
	err := graph.Load(context.TODO(), spec, s.p, func(id string) bool { return owned[id] })
	c.Assert(err, gc.IsNil)

	c.Assert(vertexIDs(s.p), gc.DeepEquals, []string{"a", "c", "lonely"})
	c.Assert(s.p.NumEdges(), gc.Equals, 2)

	edges := s.p.Vertices()["a"].Edges()
	c.Assert(edges, gc.HasLen, 1)
	c.Assert(edges[0].DstID(), gc.Equals, "b")
	c.Assert(edges[0].Value(), gc.Equals, 3)

	// Missing weights default to 1.
	c.Assert(s.p.Vertices()["c"].Edges()[0].Value(), gc.Equals, 1)
}

func (s *SourceTestSuite) TestLoadUndirected(c *gc.C) {
	spec := graph.SourceSpec{
		Kind:       graph.SourceMemory,
		Edges:      []graph.EdgeSpec{{Src: "a", Dst: "b"}},
		Undirected: true,
	}

	err := graph.Load(context.TODO(), spec, s.p, func(string) bool { return true })
	c.Assert(err, gc.IsNil)
	c.Assert(s.p.NumEdges(), gc.Equals, 2)
	c.Assert(s.p.Vertices()["b"].Edges()[0].DstID(), gc.Equals, "a")
}

func (s *SourceTestSuite) TestLoadEdgeList(c *gc.C) {
	dir, err := ioutil.TempDir("", "pregel-edgelist")
	c.Assert(err, gc.IsNil)
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "graph.txt")
	contents := "# comment\n1 2\n2 3 5\n\n3 1\n"
	c.Assert(ioutil.WriteFile(path, []byte(contents), 0600), gc.IsNil)

	err = graph.Load(context.TODO(), graph.SourceSpec{Kind: graph.SourceEdgeList, Path: path}, s.p, func(string) bool { return true })
	c.Assert(err, gc.IsNil)
	c.Assert(vertexIDs(s.p), gc.DeepEquals, []string{"1", "2", "3"})
	c.Assert(s.p.NumEdges(), gc.Equals, 3)
	c.Assert(s.p.Vertices()["2"].Edges()[0].Value(), gc.Equals, 5)

	c.Assert(ioutil.WriteFile(path, []byte("1 2 heavy\n"), 0600), gc.IsNil)
	err = graph.Load(context.TODO(), graph.SourceSpec{Kind: graph.SourceEdgeList, Path: path}, s.p, func(string) bool { return true })
	c.Assert(err, gc.ErrorMatches, "load edgelist graph: line 1: invalid edge weight.*")
}

func (s *SourceTestSuite) TestGeneratedGraphIsDeterministic(c *gc.C) {
	spec := graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 50, EdgesPerVertex: 3, Seed: 42}

	// Split the graph between two partitions and compare with a single
	// partition holding the full graph.
	even := func(id string) bool { return len(id)%2 == 0 }
	odd := func(id string) bool { return !even(id) }

	c.Assert(graph.Load(context.TODO(), spec, s.p, func(string) bool { return true }), gc.IsNil)

	var splitEdges int
	for _, owns := range []graph.OwnerFunc{even, odd} {
		p, err := graph.NewPartition(graph.PartitionConfig{
			ComputeFn: func(*graph.Partition, *graph.Vertex, message.Iterator) error { return nil },
		})
		c.Assert(err, gc.IsNil)
		c.Assert(graph.Load(context.TODO(), spec, p, owns), gc.IsNil)
		splitEdges += p.NumEdges()
		c.Assert(p.Close(), gc.IsNil)
	}

	c.Assert(s.p.NumVertices(), gc.Equals, 50)
	c.Assert(splitEdges, gc.Equals, s.p.NumEdges())
}

func vertexIDs(p *graph.Partition) []string {
	var ids []string
	for id := range p.Vertices() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

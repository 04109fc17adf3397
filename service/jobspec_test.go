package service

import (
	"io/ioutil"
	"path/filepath"

	"github.com/pregelhq/pregel/graph"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(JobSpecTestSuite))

type JobSpecTestSuite struct{}

func (s *JobSpecTestSuite) TestParseJobSpec(c *gc.C) {
	src := `
algorithm      = "sssp"
params         = { source = "a" }
max_supersteps = 20
workers        = 4
store          = false

source "memory" {
  undirected = true

  edge {
    src    = "a"
    dst    = "b"
    weight = 3
  }

  edge {
    src = "b"
    dst = "c"
  }
}
`
	spec, err := ParseJobSpec("job.hcl", []byte(src))
	c.Assert(err, gc.IsNil)
	c.Assert(spec.Algorithm, gc.Equals, "sssp")
	c.Assert(spec.Params, gc.DeepEquals, map[string]string{"source": "a"})
	c.Assert(spec.MaxSupersteps, gc.Equals, 20)
	c.Assert(spec.Workers, gc.Equals, 4)
	c.Assert(spec.StoreResults(), gc.Equals, false)
	c.Assert(spec.Source, gc.DeepEquals, graph.SourceSpec{
		Kind:       graph.SourceMemory,
		Undirected: true,
		Edges: []graph.EdgeSpec{
			{Src: "a", Dst: "b", Weight: 3},
			{Src: "b", Dst: "c"},
		},
	})
}

func (s *JobSpecTestSuite) TestLoadJobSpec(c *gc.C) {
	path := filepath.Join(c.MkDir(), "wcc.hcl")
	src := `
algorithm = "wcc"

source "generated" {
  num_vertices     = 100
  edges_per_vertex = 2
  seed             = 42
}
`
	c.Assert(ioutil.WriteFile(path, []byte(src), 0644), gc.IsNil)

	spec, err := LoadJobSpec(path)
	c.Assert(err, gc.IsNil)
	c.Assert(spec.Algorithm, gc.Equals, "wcc")
	c.Assert(spec.StoreResults(), gc.Equals, true)
	c.Assert(spec.Source, gc.DeepEquals, graph.SourceSpec{
		Kind:           graph.SourceGenerated,
		NumVertices:    100,
		EdgesPerVertex: 2,
		Seed:           42,
	})

	_, err = LoadJobSpec(filepath.Join(c.MkDir(), "missing.hcl"))
	c.Assert(err, gc.ErrorMatches, "(?s)failed to parse job file .*")
}

func (s *JobSpecTestSuite) TestInvalidJobSpec(c *gc.C) {
	specs := []struct {
		descr string
		src   string
		err   string
	}{
		{
			descr: "missing algorithm",
			src:   `source "generated" { num_vertices = 1 }`,
			err:   "(?s)failed to decode job file job.hcl:.*Missing required argument.*",
		},
		{
			descr: "unsupported source kind",
			src: `
algorithm = "wcc"
source "bogus" {}
`,
			err: `(?s)invalid job file job.hcl:.*unsupported graph source kind "bogus".*`,
		},
		{
			descr: "missing source",
			src:   `algorithm = "wcc"`,
			err:   `(?s)invalid job file job.hcl:.*unsupported graph source kind "".*`,
		},
		{
			descr: "syntax error",
			src:   `algorithm = `,
			err:   "(?s)failed to parse job file job.hcl:.*",
		},
	}

	for specIndex, spec := range specs {
		c.Logf("[spec %d] %s", specIndex, spec.descr)
		_, err := ParseJobSpec("job.hcl", []byte(spec.src))
		c.Assert(err, gc.ErrorMatches, spec.err)
	}
}

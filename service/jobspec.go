package service

import (
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pregelhq/pregel/graph"
	"golang.org/x/xerrors"
)

// JobSpec describes a job submitted to the service.
type JobSpec struct {
	// The name of the algorithm to run and its parameters.
	Algorithm string            `json:"algorithm"`
	Params    map[string]string `json:"params,omitempty"`

	// Source describes the graph to process.
	Source graph.SourceSpec `json:"source"`

	// MaxSupersteps bounds the number of executed supersteps. If not
	// specified, the conductor default applies.
	MaxSupersteps int `json:"max_supersteps,omitempty"`

	// ComputeWorkers is the number of goroutines each worker uses for
	// running the compute function.
	ComputeWorkers int `json:"compute_workers,omitempty"`

	// Workers is the number of workers for the job. If not specified,
	// every configured server hosts WorkersPerServer workers.
	Workers int `json:"workers,omitempty"`

	// Store controls whether results are persisted. Defaults to true.
	Store *bool `json:"store,omitempty"`
}

// StoreResults returns true if the job results should be persisted.
func (spec JobSpec) StoreResults() bool {
	return spec.Store == nil || *spec.Store
}

// Validate checks whether spec describes a runnable job.
func (spec JobSpec) Validate() error {
	var err error
	if spec.Algorithm == "" {
		err = multierror.Append(err, xerrors.Errorf("algorithm not specified"))
	}
	if sErr := spec.Source.Validate(); sErr != nil {
		err = multierror.Append(err, sErr)
	}
	if spec.MaxSupersteps < 0 {
		err = multierror.Append(err, xerrors.Errorf("max supersteps must not be negative"))
	}
	if spec.ComputeWorkers < 0 {
		err = multierror.Append(err, xerrors.Errorf("compute workers must not be negative"))
	}
	if spec.Workers < 0 {
		err = multierror.Append(err, xerrors.Errorf("number of workers must not be negative"))
	}
	return err
}

// hclJobFile is the layout of an HCL job definition:
//
//	algorithm      = "sssp"
//	params         = { source = "a" }
//	max_supersteps = 100
//
//	source "memory" {
//	  undirected = true
//	  edge {
//	    src    = "a"
//	    dst    = "b"
//	    weight = 3
//	  }
//	}
type hclJobFile struct {
	Algorithm      string            `hcl:"algorithm"`
	Params         map[string]string `hcl:"params,optional"`
	MaxSupersteps  int               `hcl:"max_supersteps,optional"`
	ComputeWorkers int               `hcl:"compute_workers,optional"`
	Workers        int               `hcl:"workers,optional"`
	Store          *bool             `hcl:"store,optional"`
	Source         *hclSource        `hcl:"source,block"`
}

type hclSource struct {
	Kind           string     `hcl:"kind,label"`
	Path           string     `hcl:"path,optional"`
	Vertices       []string   `hcl:"vertices,optional"`
	Edges          []*hclEdge `hcl:"edge,block"`
	NumVertices    int        `hcl:"num_vertices,optional"`
	EdgesPerVertex int        `hcl:"edges_per_vertex,optional"`
	Seed           int64      `hcl:"seed,optional"`
	Undirected     bool       `hcl:"undirected,optional"`
}

type hclEdge struct {
	Src    string `hcl:"src"`
	Dst    string `hcl:"dst"`
	Weight int    `hcl:"weight,optional"`
}

// LoadJobSpec parses the HCL job definition at path.
func LoadJobSpec(path string) (JobSpec, error) {
	hclFile, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return JobSpec{}, xerrors.Errorf("failed to parse job file %s: %w", path, diags)
	}
	return decodeJobSpec(path, hclFile.Body)
}

// ParseJobSpec parses an HCL job definition. The filename is only used in
// error messages.
func ParseJobSpec(filename string, src []byte) (JobSpec, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return JobSpec{}, xerrors.Errorf("failed to parse job file %s: %w", filename, diags)
	}
	return decodeJobSpec(filename, hclFile.Body)
}

func decodeJobSpec(filename string, body hcl.Body) (JobSpec, error) {
	var parsed hclJobFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return JobSpec{}, xerrors.Errorf("failed to decode job file %s: %w", filename, diags)
	}

	spec := JobSpec{
		Algorithm:      parsed.Algorithm,
		Params:         parsed.Params,
		MaxSupersteps:  parsed.MaxSupersteps,
		ComputeWorkers: parsed.ComputeWorkers,
		Workers:        parsed.Workers,
		Store:          parsed.Store,
	}
	if src := parsed.Source; src != nil {
		spec.Source = graph.SourceSpec{
			Kind:           src.Kind,
			Path:           src.Path,
			Vertices:       src.Vertices,
			NumVertices:    src.NumVertices,
			EdgesPerVertex: src.EdgesPerVertex,
			Seed:           src.Seed,
			Undirected:     src.Undirected,
		}
		for _, e := range src.Edges {
			spec.Source.Edges = append(spec.Source.Edges, graph.EdgeSpec{Src: e.Src, Dst: e.Dst, Weight: e.Weight})
		}
	}

	if err := spec.Validate(); err != nil {
		return JobSpec{}, xerrors.Errorf("invalid job file %s: %w", filename, err)
	}
	return spec, nil
}

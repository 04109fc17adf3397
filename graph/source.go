package graph

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Supported graph source kinds.
const (
	SourceMemory    = "memory"
	SourceEdgeList  = "edgelist"
	SourceGenerated = "generated"
)

// EdgeSpec describes a weighted, directed edge.
type EdgeSpec struct {
	Src    string `msgpack:"s" json:"src"`
	Dst    string `msgpack:"d" json:"dst"`
	Weight int    `msgpack:"w" json:"weight,omitempty"`
}

// SourceSpec is a serializable description of where a job's graph comes
// from. Every worker receives the same spec and loads the subset of vertices
// that it owns.
type SourceSpec struct {
	Kind string `msgpack:"kind" json:"kind"`

	// Path to an edge list file for SourceEdgeList. Each non-empty line
	// that does not start with '#' contains "src dst [weight]".
	Path string `msgpack:"path,omitempty" json:"path,omitempty"`

	// Inline graph for SourceMemory.
	Vertices []string   `msgpack:"vertices,omitempty" json:"vertices,omitempty"`
	Edges    []EdgeSpec `msgpack:"edges,omitempty" json:"edges,omitempty"`

	// Parameters for SourceGenerated.
	NumVertices    int   `msgpack:"num_vertices,omitempty" json:"num_vertices,omitempty"`
	EdgesPerVertex int   `msgpack:"edges_per_vertex,omitempty" json:"edges_per_vertex,omitempty"`
	Seed           int64 `msgpack:"seed,omitempty" json:"seed,omitempty"`

	// Undirected causes a reverse edge to be added for every edge.
	Undirected bool `msgpack:"undirected,omitempty" json:"undirected,omitempty"`
}

// Validate checks that s describes a loadable graph.
func (s SourceSpec) Validate() error {
	switch s.Kind {
	case SourceMemory:
		if len(s.Vertices) == 0 && len(s.Edges) == 0 {
			return xerrors.New("memory graph source does not define any vertices or edges")
		}
	case SourceEdgeList:
		if s.Path == "" {
			return xerrors.New("edge list graph source requires a path")
		}
	case SourceGenerated:
		if s.NumVertices <= 0 {
			return xerrors.New("generated graph source requires a positive number of vertices")
		}
	default:
		return xerrors.Errorf("unsupported graph source kind %q", s.Kind)
	}
	return nil
}

// OwnerFunc reports whether a vertex is owned by the partition being loaded.
type OwnerFunc func(vertexID string) bool

// Load populates p with the vertices described by spec that are accepted by
// owns, together with their outgoing edges. Edge values are int weights.
func Load(ctx context.Context, spec SourceSpec, p *Partition, owns OwnerFunc) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	l := &loader{p: p, owns: owns, undirected: spec.Undirected}
	for _, id := range spec.Vertices {
		l.addVertex(id)
	}

	var err error
	switch spec.Kind {
	case SourceMemory:
		for _, e := range spec.Edges {
			if err = l.addEdge(e.Src, e.Dst, e.Weight); err != nil {
				break
			}
		}
	case SourceEdgeList:
		err = l.loadEdgeList(ctx, spec.Path)
	case SourceGenerated:
		err = l.generate(ctx, spec.NumVertices, spec.EdgesPerVertex, spec.Seed)
	}

	if err != nil {
		return xerrors.Errorf("load %s graph: %w", spec.Kind, err)
	}
	return nil
}

type loader struct {
	p          *Partition
	owns       OwnerFunc
	undirected bool
}

func (l *loader) addVertex(id string) {
	if !l.owns(id) {
		return
	}
	if _, exists := l.p.vertices[id]; !exists {
		l.p.AddVertex(id, nil)
	}
}

func (l *loader) addEdge(src, dst string, weight int) error {
	if weight == 0 {
		weight = 1
	}

	l.addVertex(src)
	l.addVertex(dst)
	if l.owns(src) {
		if err := l.p.AddEdge(src, dst, weight); err != nil {
			return err
		}
	}
	if l.undirected && l.owns(dst) {
		return l.p.AddEdge(dst, src, weight)
	}
	return nil
}

func (l *loader) loadEdgeList(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		if lineNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return xerrors.Errorf("line %d: expected at least a source and a destination vertex", lineNum)
		}

		weight := 1
		if len(parts) > 2 {
			if weight, err = strconv.Atoi(parts[2]); err != nil {
				return xerrors.Errorf("line %d: invalid edge weight: %w", lineNum, err)
			}
		}

		if err = l.addEdge(parts[0], parts[1], weight); err != nil {
			return xerrors.Errorf("line %d: %w", lineNum, err)
		}
	}

	return scanner.Err()
}

// generate builds a pseudo-random graph. Every worker uses the same seed so
// they all agree on the full edge set.
func (l *loader) generate(ctx context.Context, numVertices, edgesPerVertex int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	for src := 0; src < numVertices; src++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcID := fmt.Sprint(src)
		l.addVertex(srcID)

		targets := make(map[int]bool)
		for i := 0; i < edgesPerVertex && len(targets) < numVertices-1; i++ {
			dst := rng.Intn(numVertices)
			if dst == src || targets[dst] {
				continue
			}
			targets[dst] = true
			if err := l.addEdge(srcID, fmt.Sprint(dst), 1+rng.Intn(10)); err != nil {
				return err
			}
		}
	}
	return nil
}

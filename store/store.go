// Package store defines the interface for persisting the per-vertex results
// of completed jobs.
package store

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"
)

// ErrNotFound is returned when looking up the results of an unknown job.
var ErrNotFound = xerrors.New("not found")

// VertexResult is the persisted result of a single vertex.
type VertexResult struct {
	VertexID string          `json:"vertex_id"`
	Value    json.RawMessage `json:"value"`
}

// ResultStore is implemented by types that can persist job results. Workers
// of the same job store disjoint sets of vertices concurrently.
type ResultStore interface {
	// StoreResults persists a batch of vertex results for jobID.
	StoreResults(ctx context.Context, jobID string, results []VertexResult) error

	// Results returns all results stored for jobID ordered by vertex ID.
	// ErrNotFound is returned if no results exist for the job.
	Results(ctx context.Context, jobID string) ([]VertexResult, error)

	// DeleteResults removes all results stored for jobID.
	DeleteResults(ctx context.Context, jobID string) error
}

// EncodeResult converts an algorithm result into a VertexResult.
func EncodeResult(vertexID string, value interface{}) (VertexResult, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return VertexResult{}, xerrors.Errorf("encode result for vertex %q: %w", vertexID, err)
	}
	return VertexResult{VertexID: vertexID, Value: raw}, nil
}

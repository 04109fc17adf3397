// Package algotest runs algorithms in-process for testing them on small
// graphs.
package algotest

import (
	"context"

	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/graph"
	"golang.org/x/xerrors"
)

// Executor runs an algorithm to completion on a single, self-contained
// partition. It applies the same stop conditions as a distributed job.
type Executor struct {
	alg           algorithm.Algorithm
	p             *graph.Partition
	maxSupersteps int
	supersteps    int
}

// NewExecutor returns an Executor for running alg on partition p. The
// partition must have been created with algorithm.NewLocalPartition.
func NewExecutor(alg algorithm.Algorithm, p *graph.Partition, maxSupersteps int) *Executor {
	return &Executor{alg: alg, p: p, maxSupersteps: maxSupersteps}
}

// Supersteps returns the number of supersteps executed by the last call to
// RunToCompletion.
func (ex *Executor) Supersteps() int { return ex.supersteps }

// RunToCompletion keeps executing supersteps until the context expires, an
// error occurs or the computation converges.
func (ex *Executor) RunToCompletion(ctx context.Context) error {
	ex.supersteps = 0
	for superstep := 0; ; superstep++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		active, err := ex.p.Step(superstep)
		ex.supersteps++
		if err != nil {
			return xerrors.Errorf("superstep %d: %w", superstep, err)
		}

		// The partition aggregators double as the global values.
		keepRunning, err := algorithm.KeepRunning(ex.alg, superstep, ex.p.Aggregators(), active, ex.p.SentMessages(), ex.maxSupersteps)
		if err != nil {
			return xerrors.Errorf("post superstep %d: %w", superstep, err)
		} else if !keepRunning {
			return nil
		}
	}
}

// Results invokes visitFn with the result of every vertex in the partition.
func (ex *Executor) Results(visitFn func(vertexID string, result interface{}) error) error {
	for id, v := range ex.p.Vertices() {
		if err := visitFn(id, ex.alg.Result(v)); err != nil {
			return err
		}
	}
	return nil
}

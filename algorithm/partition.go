package algorithm

import (
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/graph/message"
)

// NewLocalPartition creates a partition that is set up for running alg.
func NewLocalPartition(alg Algorithm, computeWorkers int) (*graph.Partition, error) {
	p, err := graph.NewPartition(graph.PartitionConfig{
		ComputeFn:      alg.Compute,
		ComputeWorkers: computeWorkers,
		QueueFactory:   message.NewCombiningQueueFactory(alg.Combiner()),
	})
	if err != nil {
		return nil, err
	}
	alg.RegisterAggregators(p.Aggregators())
	return p, nil
}

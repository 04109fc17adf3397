package graph

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pregelhq/pregel/graph/message"
	"golang.org/x/xerrors"
)

// PartitionConfig encapsulates the configuration options for creating graph
// partitions.
type PartitionConfig struct {
	// QueueFactory is used by the partition to create message queue
	// instances for each vertex that is added to it. If not specified, the
	// default in-memory queue will be used instead.
	QueueFactory message.QueueFactory

	// ComputeFn is the compute function that will be invoked for each
	// active vertex when executing a superstep. A valid ComputeFunc
	// instance is required for the config to be valid.
	ComputeFn ComputeFunc

	// ComputeWorkers specifies the number of workers to use for invoking
	// the registered ComputeFunc when executing each superstep. If not
	// specified, a single worker will be used.
	ComputeWorkers int
}

// validate checks whether a partition configuration is valid and sets the
// default values where required.
func (cfg *PartitionConfig) validate() error {
	var err error
	if cfg.QueueFactory == nil {
		cfg.QueueFactory = message.NewInMemoryQueue
	}
	if cfg.ComputeWorkers <= 0 {
		cfg.ComputeWorkers = 1
	}

	if cfg.ComputeFn == nil {
		err = multierror.Append(err, xerrors.New("compute function not specified"))
	}

	return err
}

package conductor

import (
	"io/ioutil"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/status"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// DefaultMaxSupersteps is the superstep limit applied to jobs that do not
// specify one.
const DefaultMaxSupersteps = 500

// Dispatcher is implemented by types that can deliver messages to actors.
// It is satisfied by *actor.Runtime.
type Dispatcher interface {
	Dispatch(sender, receiver actor.PID, msg interface{}) error
}

// Config encapsulates the settings for a job conductor.
type Config struct {
	// JobID uniquely identifies the job.
	JobID string

	// The name of the algorithm to run, its parameters and an instance
	// created from them.
	Algorithm string
	Params    algorithm.Params
	Alg       algorithm.Algorithm

	// Workers lists the worker PIDs that participate in the job. The
	// position of each PID is the index of the graph partition it owns.
	Workers []actor.PID

	// Source describes the graph to load.
	Source graph.SourceSpec

	// MaxSupersteps bounds the number of supersteps. If not specified,
	// DefaultMaxSupersteps is used.
	MaxSupersteps int

	// ComputeWorkers is forwarded to the workers and controls the number
	// of goroutines used by their partitions.
	ComputeWorkers int

	// Store controls whether the workers persist their results.
	Store bool

	// Dispatcher delivers messages to the workers.
	Dispatcher Dispatcher

	// A clock instance for the phase timers. If not specified, the wall
	// clock is used.
	Clock clock.Clock

	// Sinks for metrics and status updates. Both default to a sink that
	// discards everything.
	Metrics metrics.Sink
	Status  status.Sink

	// A logger instance to use. If not specified, a null logger will be
	// used instead.
	Logger *logrus.Entry
}

// Validate checks whether the configuration is valid and sets the default
// values where required.
func (cfg *Config) Validate() error {
	var err error
	if cfg.JobID == "" {
		err = multierror.Append(err, xerrors.Errorf("job ID not specified"))
	}
	if cfg.Alg == nil {
		err = multierror.Append(err, xerrors.Errorf("algorithm instance not specified"))
	}
	if len(cfg.Workers) == 0 {
		err = multierror.Append(err, xerrors.Errorf("at least one worker must be specified"))
	}
	seen := make(map[actor.PID]bool, len(cfg.Workers))
	for _, w := range cfg.Workers {
		if seen[w] {
			err = multierror.Append(err, xerrors.Errorf("worker %s specified more than once", w))
		}
		seen[w] = true
	}
	if cfg.Dispatcher == nil {
		err = multierror.Append(err, xerrors.Errorf("message dispatcher not specified"))
	}
	if cfg.MaxSupersteps < 0 {
		err = multierror.Append(err, xerrors.Errorf("max supersteps must not be negative"))
	} else if cfg.MaxSupersteps == 0 {
		cfg.MaxSupersteps = DefaultMaxSupersteps
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Discard
	}
	if cfg.Status == nil {
		cfg.Status = status.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

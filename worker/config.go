package worker

import (
	"io/ioutil"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/status"
	"github.com/pregelhq/pregel/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Config encapsulates the settings shared by all workers hosted on a server.
type Config struct {
	// Algorithms is used for instantiating the algorithm named in a
	// WorkerStart message.
	Algorithms *algorithm.Registry

	// Store persists the job results. It may be nil if no job ever
	// requests its results to be stored.
	Store store.ResultStore

	// StoreTimeout bounds the time spent persisting the results of a
	// single worker. Defaults to one minute.
	StoreTimeout time.Duration

	// Router delivers messages to the conductor, peers and the worker
	// itself.
	Router Router

	// Sinks for metrics and status updates. Both default to a sink that
	// discards everything.
	Metrics metrics.Sink
	Status  status.Sink

	// A clock instance for status timestamps. If not specified, the wall
	// clock is used.
	Clock clock.Clock

	// A logger instance to use. If not specified, a null logger will be
	// used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Algorithms == nil {
		err = multierror.Append(err, xerrors.Errorf("algorithm registry not specified"))
	}
	if cfg.Router == nil {
		err = multierror.Append(err, xerrors.Errorf("message router not specified"))
	}
	if cfg.StoreTimeout < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for store timeout"))
	} else if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = time.Minute
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Discard
	}
	if cfg.Status == nil {
		cfg.Status = status.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

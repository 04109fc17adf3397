package service

import (
	"io/ioutil"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/algorithm/pagerank"
	"github.com/pregelhq/pregel/algorithm/sssp"
	"github.com/pregelhq/pregel/algorithm/wcc"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/store"
	"github.com/pregelhq/pregel/store/memory"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Config encapsulates the settings for a Pregel server.
type Config struct {
	// AdvertiseAddress is the address that other servers use for reaching
	// this server. It also serves as the server part of every local PID.
	AdvertiseAddress string

	// ListenAddress for the transport server. Defaults to the advertised
	// address.
	ListenAddress string

	// Servers lists the addresses of the servers that host the workers of
	// jobs submitted to this server. Defaults to this server only.
	Servers []string

	// The number of workers that each server hosts for a job that does not
	// specify a worker count. Defaults to 1.
	WorkersPerServer int

	// Algorithms lists the algorithms that jobs can run. Defaults to
	// DefaultAlgorithms().
	Algorithms *algorithm.Registry

	// Store persists job results. Defaults to an in-memory store.
	Store store.ResultStore

	// StoreTimeout bounds the time that a worker spends persisting its
	// results. Defaults to one minute.
	StoreTimeout time.Duration

	// JobRetention is the time that the status and results of a finished
	// job are kept around. Defaults to one hour.
	JobRetention time.Duration

	// DialTimeout bounds the time for connecting to a remote server.
	DialTimeout time.Duration

	// Metrics receives job and worker events. Defaults to a sink that
	// discards everything.
	Metrics metrics.Sink

	// A clock instance for generating time-related events. If not
	// specified, the default wall-clock will be used instead.
	Clock clock.Clock

	// Tracer for the transport streams. Defaults to the global tracer.
	Tracer opentracing.Tracer

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.AdvertiseAddress == "" {
		err = multierror.Append(err, xerrors.Errorf("advertise address not specified"))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = cfg.AdvertiseAddress
	}
	if len(cfg.Servers) == 0 {
		cfg.Servers = []string{cfg.AdvertiseAddress}
	}
	if cfg.WorkersPerServer < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for workers per server"))
	} else if cfg.WorkersPerServer == 0 {
		cfg.WorkersPerServer = 1
	}
	if cfg.Algorithms == nil {
		cfg.Algorithms = DefaultAlgorithms()
	}
	if cfg.Store == nil {
		cfg.Store = memory.NewInMemoryStore()
	}
	if cfg.StoreTimeout < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for store timeout"))
	}
	if cfg.JobRetention < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for job retention"))
	} else if cfg.JobRetention == 0 {
		cfg.JobRetention = time.Hour
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// DefaultAlgorithms returns a registry with all bundled algorithms.
func DefaultAlgorithms() *algorithm.Registry {
	reg := algorithm.NewRegistry()
	reg.Register(pagerank.Name, pagerank.New)
	reg.Register(sssp.Name, sssp.New)
	reg.Register(wcc.Name, wcc.New)
	return reg
}

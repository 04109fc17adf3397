// Package service wires the actor runtime, the transport and the job
// registry into a Pregel server.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/conductor"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/status"
	"github.com/pregelhq/pregel/store"
	"github.com/pregelhq/pregel/transport"
	"github.com/pregelhq/pregel/worker"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var (
	// ErrUnknownJob is returned for operations on jobs that were never
	// submitted to this server or have already been reaped.
	ErrUnknownJob = xerrors.New("unknown job")

	// ErrJobFinished is returned when canceling a job that has already
	// ended.
	ErrJobFinished = xerrors.New("job has already finished")
)

// reapInterval is the time between two scans for expired jobs.
const reapInterval = time.Minute

// JobStatus bundles the status of a job with the status of the workers that
// this server hosts for it.
type JobStatus struct {
	status.Job
	WorkerStatus []status.Worker `json:"worker_status,omitempty"`
}

type jobEntry struct {
	spec      JobSpec
	conductor actor.PID
}

// Service is a Pregel server. It hosts the conductors of the jobs submitted
// to it and the workers that conductors on any server start on it.
type Service struct {
	cfg     Config
	self    actor.PID
	board   *status.Board
	runtime *actor.Runtime
	pool    *transport.Pool
	server  *transport.Server

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// New creates a new Service instance with the specified configuration.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("pregel service: config validation failed: %w", err)
	}

	s := &Service{
		cfg:   cfg,
		self:  actor.PID{Server: cfg.AdvertiseAddress, Actor: "service"},
		board: status.NewBoard(),
		jobs:  make(map[string]*jobEntry),
	}

	var err error
	if s.pool, err = transport.NewPool(transport.PoolConfig{
		DialTimeout: cfg.DialTimeout,
		Tracer:      cfg.Tracer,
		Logger:      cfg.Logger,
	}); err != nil {
		return nil, err
	}

	if s.runtime, err = actor.NewRuntime(actor.RuntimeConfig{
		Server:  cfg.AdvertiseAddress,
		Remote:  s.pool,
		Spawner: s.spawnWorker,
		Logger:  cfg.Logger,
	}); err != nil {
		return nil, err
	}

	if s.server, err = transport.NewServer(transport.ServerConfig{
		ListenAddress: cfg.ListenAddress,
		Local:         s.runtime,
		Tracer:        cfg.Tracer,
		Logger:        cfg.Logger,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Start listening for messages from remote servers. Calls to Start are
// non-blocking. The caller must invoke Close to shut down the service.
func (s *Service) Start() error {
	return s.server.Start()
}

// Close stops all local actors and terminates every connection.
func (s *Service) Close() error {
	var err error
	if cErr := s.server.Close(); cErr != nil {
		err = multierror.Append(err, cErr)
	}
	if cErr := s.runtime.Close(); cErr != nil {
		err = multierror.Append(err, cErr)
	}
	if cErr := s.pool.Close(); cErr != nil {
		err = multierror.Append(err, cErr)
	}
	return err
}

// Run starts the service and blocks until the context expires. While
// running, the status and results of expired jobs are periodically
// discarded.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	s.cfg.Logger.WithField("addr", s.cfg.AdvertiseAddress).Info("pregel service started")

	for {
		select {
		case <-ctx.Done():
			return s.Close()
		case <-s.cfg.Clock.After(reapInterval):
			s.reapJobs(ctx)
		}
	}
}

// Submit starts a new job and returns its ID. The job runs asynchronously;
// use Status or Wait to track its progress.
func (s *Service) Submit(spec JobSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", xerrors.Errorf("invalid job spec: %w", err)
	}
	alg, err := s.cfg.Algorithms.New(spec.Algorithm, spec.Params)
	if err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	cPID, err := s.runtime.NewPID(s.cfg.AdvertiseAddress)
	if err != nil {
		return "", err
	}
	cPID.Actor = "conductor-" + cPID.Actor
	cond, err := conductor.New(cPID, conductor.Config{
		JobID:          jobID,
		Algorithm:      spec.Algorithm,
		Params:         spec.Params,
		Alg:            alg,
		Workers:        s.placeWorkers(jobID, spec.Workers),
		Source:         spec.Source,
		MaxSupersteps:  spec.MaxSupersteps,
		ComputeWorkers: spec.ComputeWorkers,
		Store:          spec.StoreResults(),
		Dispatcher:     s.runtime,
		Clock:          s.cfg.Clock,
		Metrics:        s.cfg.Metrics,
		Status:         s.board,
		Logger:         s.cfg.Logger,
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.jobs[jobID] = &jobEntry{spec: spec, conductor: cPID}
	s.mu.Unlock()

	if err = s.runtime.SpawnWithPID(cPID, cond); err != nil {
		s.forget(jobID)
		return "", xerrors.Errorf("unable to spawn conductor: %w", err)
	}
	if err = s.runtime.Dispatch(s.self, cPID, protocol.Start{}); err != nil {
		s.runtime.Stop(cPID)
		s.forget(jobID)
		return "", xerrors.Errorf("unable to start job: %w", err)
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"job_id":    jobID,
		"algorithm": spec.Algorithm,
	}).Info("job submitted")
	return jobID, nil
}

// placeWorkers assigns the workers of a job to the configured servers in a
// round-robin fashion.
func (s *Service) placeWorkers(jobID string, numWorkers int) []actor.PID {
	if numWorkers == 0 {
		numWorkers = len(s.cfg.Servers) * s.cfg.WorkersPerServer
	}
	workers := make([]actor.PID, numWorkers)
	for i := range workers {
		workers[i] = actor.PID{
			Server: s.cfg.Servers[i%len(s.cfg.Servers)],
			Actor:  fmt.Sprintf("worker-%s-%d", jobID, i),
		}
	}
	return workers
}

// spawnWorker implements actor.Spawner. Workers are created on demand when
// the conductor of a job asks them to start.
func (s *Service) spawnWorker(receiver, sender actor.PID, msg interface{}) (actor.Actor, error) {
	if _, ok := msg.(protocol.WorkerStart); !ok {
		return nil, actor.ErrUnknownActor
	}
	return worker.New(receiver, worker.Config{
		Algorithms:   s.cfg.Algorithms,
		Store:        s.cfg.Store,
		StoreTimeout: s.cfg.StoreTimeout,
		Router:       s.runtime,
		Metrics:      s.cfg.Metrics,
		Status:       s.board,
		Clock:        s.cfg.Clock,
		Logger:       s.cfg.Logger,
	})
}

// Cancel requests the cancellation of a running job.
func (s *Service) Cancel(jobID, reason string) error {
	entry, err := s.lookup(jobID)
	if err != nil {
		return err
	}
	if job, err := s.board.Job(jobID); err == nil && job.Outcome.Done() {
		return ErrJobFinished
	}

	if err = s.runtime.Dispatch(s.self, entry.conductor, protocol.Cancel{Reason: reason}); err != nil {
		if xerrors.Is(err, actor.ErrUnknownActor) {
			return ErrJobFinished
		}
		return err
	}
	return nil
}

// Status returns the status of a job.
func (s *Service) Status(jobID string) (JobStatus, error) {
	if _, err := s.lookup(jobID); err != nil {
		return JobStatus{}, err
	}
	job, err := s.board.Job(jobID)
	if err != nil {
		return JobStatus{}, err
	}
	return JobStatus{Job: job, WorkerStatus: s.board.Workers(jobID)}, nil
}

// Wait blocks until the job ends or the context expires.
func (s *Service) Wait(ctx context.Context, jobID string) (JobStatus, error) {
	if _, err := s.lookup(jobID); err != nil {
		return JobStatus{}, err
	}
	job, err := s.board.Wait(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	return JobStatus{Job: job, WorkerStatus: s.board.Workers(jobID)}, nil
}

// Jobs returns the status of every job submitted to this server.
func (s *Service) Jobs() []status.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []status.Job
	for _, job := range s.board.Jobs() {
		if s.jobs[job.JobID] != nil {
			list = append(list, job)
		}
	}
	return list
}

// Results returns the stored results of a job.
func (s *Service) Results(ctx context.Context, jobID string) ([]store.VertexResult, error) {
	entry, err := s.lookup(jobID)
	if err != nil {
		return nil, err
	}
	if !entry.spec.StoreResults() {
		return nil, xerrors.Errorf("job %s does not store its results: %w", jobID, store.ErrNotFound)
	}
	return s.cfg.Store.Results(ctx, jobID)
}

func (s *Service) lookup(jobID string) (*jobEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.jobs[jobID]
	if entry == nil {
		return nil, xerrors.Errorf("job %s: %w", jobID, ErrUnknownJob)
	}
	return entry, nil
}

func (s *Service) forget(jobID string) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	s.board.Forget(jobID)
}

// reapJobs discards the status and results of jobs that finished more than
// JobRetention ago.
func (s *Service) reapJobs(ctx context.Context) {
	cutoff := s.cfg.Clock.Now().Add(-s.cfg.JobRetention)
	for _, job := range s.Jobs() {
		if !job.Outcome.Done() || job.UpdatedAt.After(cutoff) {
			continue
		}

		s.forget(job.JobID)
		if err := s.cfg.Store.DeleteResults(ctx, job.JobID); err != nil {
			s.cfg.Logger.WithFields(logrus.Fields{
				"job_id": job.JobID,
				"err":    err,
			}).Warn("unable to delete job results")
			continue
		}
		s.cfg.Logger.WithField("job_id", job.JobID).Info("discarded expired job")
	}

	// Jobs conducted by other servers only leave worker entries behind.
	for _, job := range s.board.Jobs() {
		if _, err := s.lookup(job.JobID); err == nil {
			continue
		}
		if workersExpired(s.board.Workers(job.JobID), cutoff) {
			s.board.Forget(job.JobID)
		}
	}
}

func workersExpired(workers []status.Worker, cutoff time.Time) bool {
	for _, w := range workers {
		if w.State != worker.StateCleanedUp || w.UpdatedAt.After(cutoff) {
			return false
		}
	}
	return true
}

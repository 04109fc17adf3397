// Package status tracks the externally visible status of jobs and their
// workers.
package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// ErrUnknownJob is returned when querying the status of an unknown job.
var ErrUnknownJob = xerrors.New("unknown job")

// Outcome describes how a job ended.
type Outcome string

// The possible job outcomes.
const (
	Running   Outcome = "running"
	Succeeded Outcome = "succeeded"
	Canceled  Outcome = "canceled"
	Failed    Outcome = "failed"
)

// Done returns true if the outcome is final.
func (o Outcome) Done() bool { return o != Running && o != "" }

// Job is a snapshot of the status of a job.
type Job struct {
	JobID     string                   `json:"job_id"`
	Algorithm string                   `json:"algorithm"`
	State     string                   `json:"state"`
	Outcome   Outcome                  `json:"outcome"`
	Superstep int                      `json:"superstep"`
	Workers   int                      `json:"workers"`
	Vertices  int                      `json:"vertices"`
	Edges     int                      `json:"edges"`
	Phases    map[string]time.Duration `json:"phases,omitempty"`
	Error     string                   `json:"error,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Worker is a snapshot of the status of a worker participating in a job.
type Worker struct {
	JobID     string    `json:"job_id"`
	Worker    string    `json:"worker"`
	State     string    `json:"state"`
	Superstep int       `json:"superstep"`
	Vertices  int       `json:"vertices"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sink is implemented by types that receive status updates. Calls must not
// block.
type Sink interface {
	JobUpdated(Job)
	WorkerUpdated(Worker)
}

// Discard is a Sink that drops all updates.
var Discard Sink = discard{}

type discard struct{}

func (discard) JobUpdated(Job)       {}
func (discard) WorkerUpdated(Worker) {}

type jobEntry struct {
	job     Job
	workers map[string]Worker
	doneCh  chan struct{}
}

// Board is a Sink that keeps the latest status of every job in memory.
type Board struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{jobs: make(map[string]*jobEntry)}
}

func (b *Board) entry(jobID string) *jobEntry {
	e := b.jobs[jobID]
	if e == nil {
		e = &jobEntry{
			job:     Job{JobID: jobID, Outcome: Running},
			workers: make(map[string]Worker),
			doneCh:  make(chan struct{}),
		}
		b.jobs[jobID] = e
	}
	return e
}

// JobUpdated implements Sink. Updates for a job whose outcome is already
// final are ignored.
func (b *Board) JobUpdated(job Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(job.JobID)
	if e.job.Outcome.Done() {
		return
	}
	if job.Outcome == "" {
		job.Outcome = Running
	}
	e.job = job
	if job.Outcome.Done() {
		close(e.doneCh)
	}
}

// WorkerUpdated implements Sink.
func (b *Board) WorkerUpdated(w Worker) {
	b.mu.Lock()
	b.entry(w.JobID).workers[w.Worker] = w
	b.mu.Unlock()
}

// Job returns the status of the specified job.
func (b *Board) Job(jobID string) (Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.jobs[jobID]
	if e == nil {
		return Job{}, xerrors.Errorf("status of job %q: %w", jobID, ErrUnknownJob)
	}
	return e.job, nil
}

// Jobs returns the status of all known jobs ordered by job ID.
func (b *Board) Jobs() []Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := make([]Job, 0, len(b.jobs))
	for _, e := range b.jobs {
		list = append(list, e.job)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].JobID < list[j].JobID })
	return list
}

// Workers returns the status of the workers of a job ordered by worker.
func (b *Board) Workers(jobID string) []Worker {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.jobs[jobID]
	if e == nil {
		return nil
	}
	list := make([]Worker, 0, len(e.workers))
	for _, w := range e.workers {
		list = append(list, w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Worker < list[j].Worker })
	return list
}

// Wait blocks until the job reaches a final outcome or ctx expires.
func (b *Board) Wait(ctx context.Context, jobID string) (Job, error) {
	b.mu.Lock()
	doneCh := b.entry(jobID).doneCh
	b.mu.Unlock()

	select {
	case <-doneCh:
		return b.Job(jobID)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Forget removes a job from the board.
func (b *Board) Forget(jobID string) {
	b.mu.Lock()
	delete(b.jobs, jobID)
	b.mu.Unlock()
}

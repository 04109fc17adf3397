package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink exports job events as prometheus metrics.
type PrometheusSink struct {
	workersStarted prometheus.Counter
	supersteps     prometheus.Counter
	jobSupersteps  prometheus.Counter
	sentMessages   prometheus.Counter
	activeVertices prometheus.Histogram
	loadedVertices prometheus.Counter
	storedResults  prometheus.Counter
	jobs           *prometheus.CounterVec
	phaseDurations *prometheus.HistogramVec
}

// NewPrometheusSink registers the pregel metrics with reg. If reg is nil,
// the default prometheus registerer is used.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusSink{
		workersStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pregel_workers_started_total",
			Help: "The total number of workers started for executing jobs",
		}),
		supersteps: factory.NewCounter(prometheus.CounterOpts{
			Name: "pregel_worker_supersteps_total",
			Help: "The total number of supersteps executed by workers",
		}),
		jobSupersteps: factory.NewCounter(prometheus.CounterOpts{
			Name: "pregel_job_supersteps_total",
			Help: "The total number of supersteps completed by all workers of a job",
		}),
		sentMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "pregel_vertex_messages_sent_total",
			Help: "The total number of messages sent between vertices",
		}),
		activeVertices: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pregel_superstep_active_vertices",
			Help:    "The number of vertices processed by a worker in a single superstep",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		loadedVertices: factory.NewCounter(prometheus.CounterOpts{
			Name: "pregel_vertices_loaded_total",
			Help: "The total number of vertices loaded by workers",
		}),
		storedResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "pregel_results_stored_total",
			Help: "The total number of vertex results persisted by workers",
		}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pregel_jobs_total",
			Help: "The total number of completed jobs partitioned by outcome",
		}, []string{"outcome"}),
		phaseDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pregel_job_phase_duration_seconds",
			Help:    "The time spent by jobs in each execution phase",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase"}),
	}
}

// Emit implements Sink.
func (s *PrometheusSink) Emit(ev Event) {
	switch ev.Kind {
	case WorkerStarted:
		s.workersStarted.Inc()
	case GraphLoaded:
		s.loadedVertices.Add(float64(ev.Vertices))
	case SuperstepCompleted:
		// Conductors report job-wide totals without a worker.
		if ev.Worker == "" {
			s.jobSupersteps.Inc()
			return
		}
		s.supersteps.Inc()
		s.sentMessages.Add(float64(ev.SentMessages))
		s.activeVertices.Observe(float64(ev.ActiveVertices))
	case ResultsStored:
		s.storedResults.Add(float64(ev.Stored))
	case JobFinished:
		s.jobs.WithLabelValues(ev.Outcome).Inc()
		for phase, d := range ev.Phases {
			s.phaseDurations.WithLabelValues(phase).Observe(d.Seconds())
		}
	}
}

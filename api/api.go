// Package api exposes the job management operations of a Pregel server over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/service"
	"github.com/pregelhq/pregel/status"
	"github.com/pregelhq/pregel/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/pregelhq/pregel/api JobAPI

const (
	jobsEndpoint    = "/jobs"
	jobEndpoint     = "/jobs/{id}"
	resultsEndpoint = "/jobs/{id}/results"
	metricsEndpoint = "/metrics"

	// The upper bound for the size of a job submission body.
	maxRequestBody = 16 << 20
)

// JobAPI defines the set of job management operations served by the API.
type JobAPI interface {
	Submit(spec service.JobSpec) (string, error)
	Cancel(jobID, reason string) error
	Status(jobID string) (service.JobStatus, error)
	Jobs() []status.Job
	Results(ctx context.Context, jobID string) ([]store.VertexResult, error)
}

// Config encapsulates the settings for configuring the API server.
type Config struct {
	// The API for managing jobs.
	JobAPI JobAPI

	// The address to listen for incoming requests.
	ListenAddr string

	// The gatherer for the metrics endpoint. If not specified, the
	// prometheus default gatherer will be used instead.
	Gatherer prometheus.Gatherer

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, xerrors.Errorf("listen address has not been specified"))
	}
	if cfg.JobAPI == nil {
		err = multierror.Append(err, xerrors.Errorf("job API has not been provided"))
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Server serves the HTTP API.
type Server struct {
	cfg    Config
	router *mux.Router
}

// NewServer creates a new API server instance with the specified config.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("api server: config validation failed: %w", err)
	}

	srv := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	srv.router.HandleFunc(jobsEndpoint, srv.submitJob).Methods("POST")
	srv.router.HandleFunc(jobsEndpoint, srv.listJobs).Methods("GET")
	srv.router.HandleFunc(jobEndpoint, srv.jobStatus).Methods("GET")
	srv.router.HandleFunc(jobEndpoint, srv.cancelJob).Methods("DELETE")
	srv.router.HandleFunc(resultsEndpoint, srv.jobResults).Methods("GET")
	srv.router.Handle(metricsEndpoint, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	srv.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, xerrors.New("no such endpoint"))
	})
	return srv, nil
}

// Handler returns the http.Handler for the API routes.
func (srv *Server) Handler() http.Handler { return srv.router }

// Run serves API requests until the context expires.
func (srv *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", srv.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	httpSrv := &http.Server{
		Addr:    srv.cfg.ListenAddr,
		Handler: srv.router,
	}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	srv.cfg.Logger.WithField("addr", srv.cfg.ListenAddr).Info("starting API server")
	if err = httpSrv.Serve(l); err == http.ErrServerClosed {
		// Ignore error when the server shuts down.
		err = nil
	}

	return err
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

func (srv *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var spec service.JobSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Errorf("malformed job spec: %w", err))
		return
	}
	if err := spec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Errorf("invalid job spec: %w", err))
		return
	}

	jobID, err := srv.cfg.JobAPI.Submit(spec)
	if err != nil {
		if xerrors.Is(err, algorithm.ErrUnknownAlgorithm) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		srv.cfg.Logger.WithField("err", err).Error("job submission failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{JobID: jobID})
}

func (srv *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := srv.cfg.JobAPI.Jobs()
	if jobs == nil {
		jobs = []status.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (srv *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	st, err := srv.cfg.JobAPI.Status(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (srv *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "canceled via API"
	}
	if err := srv.cfg.JobAPI.Cancel(mux.Vars(r)["id"], reason); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (srv *Server) jobResults(w http.ResponseWriter, r *http.Request) {
	res, err := srv.cfg.JobAPI.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func errorStatus(err error) int {
	switch {
	case xerrors.Is(err, service.ErrUnknownJob), xerrors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case xerrors.Is(err, service.ErrJobFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

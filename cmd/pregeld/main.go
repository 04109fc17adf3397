package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pregelhq/pregel/api"
	"github.com/pregelhq/pregel/metrics"
	"github.com/pregelhq/pregel/service"
	"github.com/pregelhq/pregel/store/cdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var (
	appName = "pregeld"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := makeApp().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Usage = "Distributed Pregel graph processing server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "advertise-address",
			EnvVar: "ADVERTISE_ADDRESS",
			Usage:  "The host:port that other servers use for reaching this server",
		},
		cli.StringFlag{
			Name:   "listen-address",
			EnvVar: "LISTEN_ADDRESS",
			Usage:  "The host:port to listen on for messages from other servers; defaults to the advertised address",
		},
		cli.StringSliceFlag{
			Name:   "servers",
			EnvVar: "SERVERS",
			Usage:  "The addresses of the servers that host workers for jobs submitted to this server; defaults to this server only",
		},
		cli.IntFlag{
			Name:   "workers-per-server",
			Value:  1,
			EnvVar: "WORKERS_PER_SERVER",
			Usage:  "The number of workers that each server hosts for a job",
		},
		cli.IntFlag{
			Name:   "api-port",
			Value:  8080,
			EnvVar: "API_PORT",
			Usage:  "The port for exposing the job management API and the metrics endpoint",
		},
		cli.IntFlag{
			Name:   "pprof-port",
			Value:  6060,
			EnvVar: "PPROF_PORT",
			Usage:  "The port for exposing pprof endpoints",
		},
		cli.StringFlag{
			Name:   "cdb-dsn",
			EnvVar: "CDB_DSN",
			Usage:  "The DSN of a CockroachDB instance for persisting job results; results are kept in memory if not specified",
		},
		cli.DurationFlag{
			Name:   "job-retention",
			Value:  time.Hour,
			EnvVar: "JOB_RETENTION",
			Usage:  "The time that the status and results of finished jobs are kept around",
		},
		cli.DurationFlag{
			Name:   "store-timeout",
			Value:  time.Minute,
			EnvVar: "STORE_TIMEOUT",
			Usage:  "The time that a worker may spend persisting its results",
		},
		cli.DurationFlag{
			Name:   "dial-timeout",
			Value:  5 * time.Second,
			EnvVar: "DIAL_TIMEOUT",
			Usage:  "The timeout for establishing a connection to another server",
		},
		cli.BoolFlag{
			Name:   "trace-all",
			EnvVar: "TRACE_ALL",
			Usage:  "Sample every span instead of using the JAEGER_SAMPLER_* settings",
		},
	}
	app.Action = runMain
	app.Commands = []cli.Command{
		{
			Name:      "submit",
			Usage:     "Submit the job described by an HCL file to a running server",
			ArgsUsage: "JOB_FILE",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:   "api",
					Value:  "http://localhost:8080",
					EnvVar: "PREGEL_API",
					Usage:  "The base URL of the job management API",
				},
			},
			Action: runSubmit,
		},
	}
	return app
}

func runMain(appCtx *cli.Context) error {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	tracer, tracerCloser, err := getTracer(appName, appCtx.Bool("trace-all"))
	if err != nil {
		return xerrors.Errorf("unable to set up tracing: %w", err)
	}
	defer func() { _ = tracerCloser.Close() }()

	svcCfg := service.Config{
		AdvertiseAddress: appCtx.String("advertise-address"),
		ListenAddress:    appCtx.String("listen-address"),
		Servers:          appCtx.StringSlice("servers"),
		WorkersPerServer: appCtx.Int("workers-per-server"),
		StoreTimeout:     appCtx.Duration("store-timeout"),
		JobRetention:     appCtx.Duration("job-retention"),
		DialTimeout:      appCtx.Duration("dial-timeout"),
		Metrics:          metrics.NewPrometheusSink(prometheus.DefaultRegisterer),
		Tracer:           tracer,
		Logger:           logger,
	}
	if dsn := appCtx.String("cdb-dsn"); dsn != "" {
		resultStore, err := cdb.NewCockroachDBStore(dsn)
		if err != nil {
			return xerrors.Errorf("unable to connect to result store: %w", err)
		}
		defer func() { _ = resultStore.Close() }()
		svcCfg.Store = resultStore
	}

	svc, err := service.New(svcCfg)
	if err != nil {
		return err
	}

	apiSrv, err := api.NewServer(api.Config{
		JobAPI:     svc,
		ListenAddr: fmt.Sprintf(":%d", appCtx.Int("api-port")),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	// Start pprof server
	pprofListener, err := net.Listen("tcp", fmt.Sprintf(":%d", appCtx.Int("pprof-port")))
	if err != nil {
		return err
	}
	defer func() { _ = pprofListener.Close() }()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("port", appCtx.Int("pprof-port")).Info("listening for pprof requests")
		srv := new(http.Server)
		_ = srv.Serve(pprofListener)
		return nil
	})
	group.Go(func() error { return svc.Run(groupCtx) })
	group.Go(func() error { return apiSrv.Run(groupCtx) })

	// Start signal watcher
	group.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Infof("shutting down due to signal")
		case <-groupCtx.Done():
		}
		_ = pprofListener.Close()
		cancelFn()
		return nil
	})

	// Keep running until we receive a signal or a component fails
	return group.Wait()
}

func runSubmit(appCtx *cli.Context) error {
	if appCtx.NArg() != 1 {
		return xerrors.Errorf("expected exactly one job file argument")
	}
	spec, err := service.LoadJobSpec(appCtx.Args().First())
	if err != nil {
		return err
	}

	body, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	endpoint := strings.TrimSuffix(appCtx.String("api"), "/") + "/jobs"
	res, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("unable to submit job: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	resBody, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusCreated {
		return xerrors.Errorf("job submission failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(resBody)))
	}

	fmt.Println(strings.TrimSpace(string(resBody)))
	return nil
}

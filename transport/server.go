package transport

import (
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"sync"
	"sync/atomic"

	"github.com/golang/protobuf/ptypes/empty"
	"github.com/grpc-ecosystem/grpc-opentracing/go/otgrpc"
	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/protocol"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Dispatcher is implemented by types that deliver messages to local actors.
// It is satisfied by *actor.Runtime.
type Dispatcher interface {
	Dispatch(sender, receiver actor.PID, msg interface{}) error
}

// ServerConfig encapsulates the settings for a transport server.
type ServerConfig struct {
	// The address to listen on for incoming streams.
	ListenAddress string

	// Local receives the messages that arrive over the wire.
	Local Dispatcher

	// Tracer for incoming streams. If not specified, the global tracer
	// is used.
	Tracer opentracing.Tracer

	// A logger instance to use. If not specified, a null logger will be
	// used instead.
	Logger *logrus.Entry
}

// Validate checks whether the configuration is valid and sets the default
// values where required.
func (cfg *ServerConfig) Validate() error {
	var err error
	if cfg.ListenAddress == "" {
		err = multierror.Append(err, xerrors.Errorf("listen address not specified"))
	}
	if cfg.Local == nil {
		err = multierror.Append(err, xerrors.Errorf("local dispatcher not specified"))
	}
	if cfg.Tracer == nil {
		cfg.Tracer = opentracing.GlobalTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Server accepts message streams from remote servers and hands the messages
// to the local actor runtime.
type Server struct {
	cfg      ServerConfig
	gSrv     *grpc.Server
	listener net.Listener
	closing  int32
	wg       sync.WaitGroup
}

// NewServer creates a new Server instance with the specified configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("transport server config validation failed: %w", err)
	}
	return &Server{cfg: cfg}, nil
}

// Start listening for incoming streams. Calls to Start are non-blocking. The
// caller must invoke Close to shut down the server.
func (s *Server) Start() error {
	var err error
	if s.listener, err = net.Listen("tcp", s.cfg.ListenAddress); err != nil {
		return xerrors.Errorf("cannot start transport server: %w", err)
	}

	s.gSrv = grpc.NewServer(
		grpc.StreamInterceptor(otgrpc.OpenTracingStreamServerInterceptor(s.cfg.Tracer)),
	)
	s.gSrv.RegisterService(&mailboxServiceDesc, s)
	s.cfg.Logger.WithField("addr", s.listener.Addr().String()).Info("listening for remote messages")

	s.wg.Add(1)
	go func(l net.Listener) {
		defer s.wg.Done()
		_ = s.gSrv.Serve(l)
	}(s.listener)
	return nil
}

// Addr returns the address that the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close terminates all open streams and shuts down the server.
func (s *Server) Close() error {
	atomic.StoreInt32(&s.closing, 1)
	if s.gSrv != nil {
		s.gSrv.Stop()
		s.gSrv = nil
	}
	s.wg.Wait()
	s.listener = nil
	return nil
}

// route is a sender/receiver pair observed on a stream.
type route struct {
	sender, receiver actor.PID
}

// Deliver implements mailboxServer.
func (s *Server) Deliver(stream mailboxDeliverServer) error {
	logger := s.cfg.Logger
	if peerDetails, ok := peer.FromContext(stream.Context()); ok {
		logger = logger.WithField("peer_addr", peerDetails.Addr.String())
	}
	logger.Debug("remote server connected")

	// Workers on the remote server that report to a local conductor.
	reporting := make(map[route]struct{})
	for {
		payload, err := stream.Recv()
		if err == io.EOF {
			logger.Debug("remote server disconnected")
			return stream.SendAndClose(new(empty.Empty))
		} else if err != nil {
			s.handleDisconnect(logger, reporting, err)
			return err
		}

		sender, receiver, msg, err := decodeEnvelope(payload)
		if err != nil {
			logger.WithField("err", err).Warn("dropping malformed envelope")
			return status.Error(codes.InvalidArgument, err.Error())
		}

		trackRoute(reporting, route{sender: sender, receiver: receiver}, msg)
		if err = s.cfg.Local.Dispatch(sender, receiver, msg); err != nil {
			logger.WithFields(logrus.Fields{
				"sender":   sender.String(),
				"receiver": receiver.String(),
				"msg":      protocol.Name(msg),
				"err":      err,
			}).Warn("unable to deliver remote message")
		}
	}
}

func trackRoute(reporting map[route]struct{}, r route, msg interface{}) {
	switch msg.(type) {
	case protocol.Start, protocol.Cancel:
	case protocol.CleanupFinished:
		delete(reporting, r)
	case protocol.ConductorMessage:
		reporting[r] = struct{}{}
	}
}

// handleDisconnect raises a WorkerError on behalf of every remote worker
// that was still reporting to a local conductor when its stream broke.
func (s *Server) handleDisconnect(logger *logrus.Entry, reporting map[route]struct{}, cause error) {
	if atomic.LoadInt32(&s.closing) == 1 {
		return
	}
	logger.WithField("err", cause).Warn("lost connection to remote server")

	for r := range reporting {
		reason := fmt.Sprintf("lost connection to server %s", r.sender.Server)
		if err := s.cfg.Local.Dispatch(r.sender, r.receiver, protocol.WorkerError{Reason: reason}); err != nil {
			logger.WithFields(logrus.Fields{
				"worker":    r.sender.String(),
				"conductor": r.receiver.String(),
				"err":       err,
			}).Debug("unable to report lost worker")
		}
	}
}

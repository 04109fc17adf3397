package transport

import (
	"context"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/grpc-ecosystem/grpc-opentracing/go/otgrpc"
	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	"github.com/pregelhq/pregel/actor"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
)

// ErrPoolClosed is returned when sending messages through a closed Pool.
var ErrPoolClosed = xerrors.New("transport pool is closed")

// Compile-time check for ensuring Pool implements actor.Sender.
var _ actor.Sender = (*Pool)(nil)

// PoolConfig encapsulates the settings for a client Pool.
type PoolConfig struct {
	// DialTimeout bounds the time spent establishing a stream to a
	// remote server. Defaults to 5 seconds.
	DialTimeout time.Duration

	// Tracer for outgoing streams. If not specified, the global tracer
	// is used.
	Tracer opentracing.Tracer

	// A logger instance to use. If not specified, a null logger will be
	// used instead.
	Logger *logrus.Entry
}

// Validate checks whether the configuration is valid and sets the default
// values where required.
func (cfg *PoolConfig) Validate() error {
	var err error
	if cfg.DialTimeout < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for dial timeout"))
	} else if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Tracer == nil {
		cfg.Tracer = opentracing.GlobalTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Pool maintains one outgoing stream per remote server and implements
// actor.Sender on top of them.
type Pool struct {
	cfg PoolConfig

	mu     sync.Mutex
	links  map[string]*link
	closed bool
}

// NewPool creates a new Pool instance with the specified configuration.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("transport pool config validation failed: %w", err)
	}
	return &Pool{cfg: cfg, links: make(map[string]*link)}, nil
}

// Send implements actor.Sender. The receiver's Server field is used as the
// address of the remote transport server.
func (p *Pool) Send(sender, receiver actor.PID, msg interface{}) error {
	payload, err := encodeEnvelope(sender, receiver, msg)
	if err != nil {
		return err
	}

	l, err := p.linkTo(receiver.Server)
	if err != nil {
		return xerrors.Errorf("send to %s: %w", receiver, err)
	}

	if err = l.send(payload); err != nil {
		p.drop(receiver.Server, l)
		return xerrors.Errorf("send to %s: %w", receiver, err)
	}
	return nil
}

// Close gracefully terminates all outgoing streams.
func (p *Pool) Close() error {
	p.mu.Lock()
	links := p.links
	p.links = make(map[string]*link)
	p.closed = true
	p.mu.Unlock()

	var err error
	for server, l := range links {
		// The remote server may already be gone.
		if sErr := l.closeStream(); sErr != nil {
			p.cfg.Logger.WithFields(logrus.Fields{
				"server": server,
				"err":    sErr,
			}).Debug("stream to remote server was not closed cleanly")
		}
		if cErr := l.conn.Close(); cErr != nil {
			err = multierror.Append(err, cErr)
		}
	}
	return err
}

func (p *Pool) linkTo(server string) (*link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	if l := p.links[server]; l != nil {
		return l, nil
	}

	l, err := p.dial(server)
	if err != nil {
		return nil, err
	}
	p.links[server] = l
	p.cfg.Logger.WithField("server", server).Debug("opened stream to remote server")
	return l, nil
}

func (p *Pool) dial(server string) (*link, error) {
	dialCtx, cancelDialFn := context.WithTimeout(context.Background(), p.cfg.DialTimeout)
	defer cancelDialFn()

	conn, err := grpc.DialContext(dialCtx, server,
		grpc.WithInsecure(),
		grpc.WithBlock(),
		grpc.WithStreamInterceptor(otgrpc.OpenTracingStreamClientInterceptor(p.cfg.Tracer)),
	)
	if err != nil {
		return nil, xerrors.Errorf("unable to dial server %q: %w", server, err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	stream, err := newDeliverClient(ctx, conn)
	if err != nil {
		cancelFn()
		_ = conn.Close()
		return nil, xerrors.Errorf("unable to open stream to server %q: %w", server, err)
	}
	return &link{conn: conn, stream: stream, cancelFn: cancelFn}, nil
}

// drop discards a broken link so that the next Send dials again.
func (p *Pool) drop(server string, l *link) {
	p.mu.Lock()
	if p.links[server] == l {
		delete(p.links, server)
	}
	p.mu.Unlock()
	l.abort()
}

// link is a single outgoing stream. Sends are serialized to preserve the
// order of the messages.
type link struct {
	mu       sync.Mutex
	conn     *grpc.ClientConn
	stream   mailboxDeliverClient
	cancelFn func()
}

func (l *link) send(payload *any.Any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.stream.Send(payload)
	if xerrors.Is(err, io.EOF) {
		// The server closed the stream; fetch the actual status.
		_, err = l.stream.CloseAndRecv()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
	}
	return err
}

// closeStream half-closes the stream and waits for the server to
// acknowledge it.
func (l *link) closeStream() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.stream.CloseAndRecv()
	l.cancelFn()
	return err
}

// abort tears the stream down without waiting for the server.
func (l *link) abort() {
	l.cancelFn()
	_ = l.conn.Close()
}

package embedhttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mxvdev/embedhttp/internal/timeoutmgr"
)

// Server is the embeddable HTTP/1.1 listener, per spec.md §3: it owns
// the listener, the connection registry, configuration, the timeout
// manager, and a lifecycle state tag.
type Server struct {
	cfg       Config
	tlsConfig *tls.Config

	mu       sync.Mutex
	state    atomic.Int32
	listener net.Listener
	endpoint string

	registry *registry
	timeouts *timeoutmgr.Manager
	metrics  *Metrics
	logger   Logger

	acceptWG sync.WaitGroup

	// OnRequestReceived is invoked synchronously on dispatch, per
	// spec.md §4.5 step 4. A nil handler means every request gets the
	// Response's defaults (200 OK, empty body).
	OnRequestReceived func(ctx *Context)

	// OnUnhandledException is offered a handler panic/error before the
	// built-in 500 body is emitted; return true to suppress the
	// built-in body (the observer already wrote its own response).
	OnUnhandledException func(ctx *Context, err error) bool

	// OnStateChanged is invoked after every lifecycle transition.
	OnStateChanged func()
}

// New returns a Server configured per cfg. Call Start to begin
// accepting connections.
func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		metrics: &Metrics{},
		logger:  cfg.Logger,
	}
	if s.logger == nil {
		s.logger = NewDefaultLogger(nil)
	}
	s.state.Store(int32(serverStopped))
	return s
}

// State returns the server's current lifecycle state.
func (s *Server) State() serverState {
	return serverState(s.state.Load())
}

// Endpoint returns the bound listen address, valid after Start returns
// successfully (useful when port 0 was requested).
func (s *Server) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// UseSSL reports whether TLS is configured.
func (s *Server) UseSSL() bool {
	return s.cfg.Certificate != nil
}

// Metrics returns a snapshot of the server's runtime counters.
func (s *Server) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

func (s *Server) setState(ns serverState) {
	s.state.Store(int32(ns))
	if s.OnStateChanged != nil {
		s.OnStateChanged()
	}
}

// Start binds the listener and launches the accept loop, per spec.md
// §4.7. Returns a *ConfigError if the server isn't Stopped or the bind
// fails.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.State() != serverStopped {
		s.mu.Unlock()
		return &ConfigError{Op: "Start", Err: fmt.Errorf("server is %s, not Stopped", s.State())}
	}
	s.setState(serverStarting)

	s.registry = newRegistry()
	s.timeouts = timeoutmgr.New(s.cfg.readTimeout(), s.cfg.writeTimeout())

	lc := net.ListenConfig{}
	if s.cfg.ReuseAddress {
		lc.Control = reuseAddrControl
	}

	ln, err := lc.Listen(context.Background(), "tcp", s.cfg.Endpoint)
	if err != nil {
		s.setState(serverStopped)
		s.mu.Unlock()
		return &ConfigError{Op: "Start", Err: err}
	}

	if s.cfg.Certificate != nil {
		s.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{*s.cfg.Certificate},
			MinVersion:   s.cfg.MinTLSVersion,
			MaxVersion:   s.cfg.MaxTLSVersion,
		}
		if s.cfg.RequireClientCert {
			s.tlsConfig.ClientAuth = tls.RequireAnyClientCert
		}
	}

	s.listener = ln
	s.endpoint = ln.Addr().String()
	s.timeouts.Start()
	s.setState(serverStarted)
	s.mu.Unlock()

	s.acceptWG.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	defer s.acceptWG.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.State() != serverStarted {
				return
			}
			s.logger.Warn("accept error", F("error", err.Error()))
			continue
		}
		go s.acceptConn(conn)
	}
}

func (s *Server) acceptConn(raw net.Conn) {
	tlsEnabled := s.tlsConfig != nil
	stream := net.Conn(raw)

	if tlsEnabled {
		tlsConn := tls.Server(raw, s.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			s.logger.Warn("tls handshake failed", F("remote", raw.RemoteAddr().String()), F("error", err.Error()))
			if s.OnUnhandledException != nil {
				s.OnUnhandledException(nil, &HandlerError{Err: fmt.Errorf("tls handshake: %w", err)})
			}
			raw.Close()
			return
		}
		stream = tlsConn
	}

	c := newConnection(s, stream, tlsEnabled)
	c.serve()
}

// fallbackHostPort feeds Request.parseTarget when a request carries no
// Host header — derived from the bound listener address.
func (s *Server) fallbackHostPort() (host, port string) {
	s.mu.Lock()
	endpoint := s.endpoint
	s.mu.Unlock()
	h, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, ""
	}
	return h, p
}

func (s *Server) notifyRequestReceived(ctx *Context) {
	if s.OnRequestReceived != nil {
		s.OnRequestReceived(ctx)
	}
}

// notifyUnhandled offers err to the observer, returning whether it was
// marked handled.
func (s *Server) notifyUnhandled(ctx *Context, err error) bool {
	if s.OnUnhandledException == nil {
		return false
	}
	return s.OnUnhandledException(ctx, err)
}

// Stop transitions the server to Stopping, refuses new connections,
// asks every live connection to wind down, and waits up to
// ShutdownTimeout for the registry to drain before force-closing
// stragglers, per spec.md §4.7.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.State() != serverStarted {
		s.mu.Unlock()
		return nil
	}
	s.setState(serverStopping)
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.acceptWG.Wait()

	for _, c := range s.registry.snapshot() {
		c.requestClose()
	}

	if !s.registry.waitEmpty(s.cfg.shutdownTimeout()) {
		for _, c := range s.registry.snapshot() {
			c.forceClose()
		}
		s.registry.waitEmpty(5 * time.Second)
	}

	if s.timeouts != nil {
		s.timeouts.Stop()
	}

	s.mu.Lock()
	s.setState(serverStopped)
	s.mu.Unlock()
	return nil
}

// Dispose stops the server if still running; idempotent.
func (s *Server) Dispose() error {
	if s.State() == serverStopped {
		return nil
	}
	return s.Stop()
}

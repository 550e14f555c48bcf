// Package server is the connection engine shared by the telemetry services:
// singleton check, admission of connections and the per-connection
// request/response loop.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/oleksiiilienko/hostfacts/internal/config"
	"github.com/oleksiiilienko/hostfacts/internal/wire"
	"github.com/oleksiiilienko/hostfacts/internal/worker"
)

const stopTimeout = 5 * time.Second

// Server serves one Endpoint on one listening socket.
type Server struct {
	cfg      *config.Config
	endpoint Endpoint
	framer   wire.Framer
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	handler  *Handler
	pool     *worker.Pool[tracked]

	idle     atomic.Int64
	acceptMu sync.Mutex
	handlers sync.WaitGroup

	connMu  sync.Mutex
	conns   map[string]net.Conn
	closing bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry enables Prometheus metrics on reg and exposes them on the
// admin /metrics endpoint.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New validates cfg and builds a server for ep.
func New(cfg *config.Config, ep Endpoint, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	framer, err := wire.ParseFraming(cfg.Framing)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		endpoint: ep,
		framer:   framer,
		logger:   slog.New(slog.DiscardHandler),
		conns:    make(map[string]net.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", ep.Name())
	s.idle.Store(int64(cfg.IdleTimeout))

	if s.registry != nil {
		s.metrics = newMetrics(s.registry, ep.Name())
	}
	s.handler = &Handler{
		endpoint: ep,
		framer:   framer,
		bufSize:  cfg.BufferSize,
		idle:     s.IdleTimeout,
		logger:   s.logger,
		metrics:  s.metrics,
	}

	if cfg.AcceptMode == config.AcceptQueue {
		var poolOpts []worker.Option[tracked]
		if s.registry != nil {
			poolOpts = append(poolOpts, worker.WithMetrics[tracked](s.registry, "hostfacts_"+ep.Name()+"_handlers"))
		}
		s.pool = worker.NewPool(cfg.MaxConns, cfg.QueueSize, s.serveConn, poolOpts...)
	}
	return s, nil
}

// IdleTimeout is the current per-connection idle read deadline. Zero disables it.
func (s *Server) IdleTimeout() time.Duration {
	return time.Duration(s.idle.Load())
}

// SetIdleTimeout changes the idle deadline for reads started after the call.
func (s *Server) SetIdleTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.idle.Store(int64(d))
}

// Run checks that no other instance owns the port, binds the listener and
// serves until ctx is cancelled. A conflicting instance yields an error
// matching ErrBindConflict before anything is bound.
func (s *Server) Run(ctx context.Context) error {
	if err := EnsureSoleOwner(s.cfg.Bind, s.cfg.Port); err != nil {
		return err
	}

	addr := s.cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return classifyListenErr(addr, err)
	}
	s.logger.Info(s.endpoint.Name()+" running",
		"addr", ln.Addr().String(),
		"framing", s.framer.String(),
		"accept_mode", s.cfg.AcceptMode)

	return s.Serve(ctx, ln)
}

// Serve admits connections from ln until ctx is cancelled, then closes ln and
// every connection still open. It returns after all handlers have exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		s.closeConns()
		return nil
	})

	g.Go(func() error {
		if s.cfg.AcceptMode == config.AcceptShared {
			return s.admitShared(gctx, ln)
		}
		return s.admitQueued(gctx, ln)
	})

	if s.cfg.AdminAddr != "" {
		if err := s.serveAdmin(gctx, g); err != nil {
			_ = ln.Close()
			_ = g.Wait()
			s.handlers.Wait()
			return err
		}
	}

	err := g.Wait()
	s.handlers.Wait()
	if err != nil {
		return err
	}
	s.logger.Info(s.endpoint.Name() + " stopped")
	return nil
}

// serveAdmin binds the admin HTTP listener and adds its goroutines to g.
func (s *Server) serveAdmin(ctx context.Context, g *errgroup.Group) error {
	aln, err := net.Listen("tcp", s.cfg.AdminAddr)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.cfg.AdminAddr, err)
	}
	srv := &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("admin endpoint listening", "addr", aln.Addr().String())

	g.Go(func() error {
		if err := srv.Serve(aln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

// track registers conn for shutdown. It closes conn and reports false when
// the server is already shutting down.
func (s *Server) track(conn net.Conn) (tracked, bool) {
	tc := tracked{id: uuid.NewString(), conn: conn}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closing {
		_ = conn.Close()
		return tc, false
	}
	s.conns[tc.id] = conn
	return tc, true
}

func (s *Server) untrack(id string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, id)
}

// closeConns closes every tracked connection and refuses new ones.
func (s *Server) closeConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.closing = true
	for id, c := range s.conns {
		_ = c.Close()
		delete(s.conns, id)
	}
}

// ActiveConns reports how many connections are currently tracked.
func (s *Server) ActiveConns() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

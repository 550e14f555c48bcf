package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

// tracked is an accepted connection with its log id.
type tracked struct {
	id   string
	conn net.Conn
}

// admitQueued runs a single accept loop that hands connections to the handler
// pool. A full queue closes the new connection.
func (s *Server) admitQueued(ctx context.Context, ln net.Listener) error {
	if err := s.pool.Start(ctx); err != nil {
		return fmt.Errorf("start handler pool: %w", err)
	}
	defer func() {
		if err := s.pool.Stop(stopTimeout); err != nil {
			s.logger.Warn("handler pool did not drain", "err", err)
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if listenerClosed(ctx, err) {
				return s.admissionEnded(ctx)
			}
			s.acceptFailed(err)
			continue
		}
		tc, ok := s.track(conn)
		if !ok {
			continue
		}
		s.metrics.connAccepted()
		if err := s.pool.Submit(tc); err != nil {
			s.untrack(tc.id)
			_ = conn.Close()
			s.metrics.connRejected()
			s.logger.Warn("rejecting connection", "conn", tc.id, "remote", conn.RemoteAddr().String(), "err", err)
		}
	}
}

// admitShared starts cfg.Workers goroutines that take turns on the listener.
// The mutex is held across Accept so at most one goroutine is inside Accept at
// a time; the others wait on the mutex. Every accepted connection gets its own
// handler goroutine.
func (s *Server) admitShared(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.acceptShared(ctx, ln)
		}()
	}
	wg.Wait()
	return s.admissionEnded(ctx)
}

func (s *Server) acceptShared(ctx context.Context, ln net.Listener) {
	for {
		s.acceptMu.Lock()
		conn, err := ln.Accept()
		s.acceptMu.Unlock()

		if err != nil {
			if listenerClosed(ctx, err) {
				return
			}
			s.acceptFailed(err)
			continue
		}
		tc, ok := s.track(conn)
		if !ok {
			continue
		}
		s.metrics.connAccepted()
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.serveConn(ctx, tc)
		}()
	}
}

func (s *Server) acceptFailed(err error) {
	s.metrics.acceptFailed()
	s.logger.Error("accept connection failed", "err", newError(KindAccept, "accept", err))
}

// admissionEnded reports an unexpected listener close as an error so the
// errgroup stops the remaining goroutines.
func (s *Server) admissionEnded(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	return errListenerClosed
}

var errListenerClosed = errors.New("listener closed")

func listenerClosed(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, net.ErrClosed)
}

// serveConn runs the handler for an admitted connection. It is the pool's
// processor in queue mode.
func (s *Server) serveConn(ctx context.Context, tc tracked) {
	s.metrics.connOpened()
	defer s.metrics.connClosed()
	defer s.untrack(tc.id)

	s.handler.Serve(ctx, tc.id, tc.conn)
}

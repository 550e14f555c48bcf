package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

// ConnState is the position of a connection in the request cycle.
type ConnState int

const (
	StateAwaitingRequest ConnState = iota
	StateDecoding
	StateQuerying
	StateEncoding
	StateWriting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting_request"
	case StateDecoding:
		return "decoding"
	case StateQuerying:
		return "querying"
	case StateEncoding:
		return "encoding"
	case StateWriting:
		return "writing"
	default:
		return "closed"
	}
}

// Handler runs the read, decode, query, encode, write loop for connections of
// one service.
type Handler struct {
	endpoint Endpoint
	framer   wire.Framer
	bufSize  int
	idle     func() time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// Serve owns conn until the peer closes it, a request fails, the idle timeout
// expires or ctx is cancelled. conn is always closed on return.
func (h *Handler) Serve(ctx context.Context, id string, conn net.Conn) {
	defer conn.Close()

	log := h.logger.With("conn", id, "remote", conn.RemoteAddr().String())
	buf := make([]byte, h.bufSize)
	served := 0
	state := StateAwaitingRequest

	defer func() {
		log.Debug("connection closed", "last_state", state, "served", served)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		state = StateAwaitingRequest
		h.setDeadline(conn.SetReadDeadline)

		msg, err := h.framer.ReadMessage(conn, buf)
		if err != nil {
			h.readFailed(ctx, log, err)
			return
		}

		start := time.Now()
		out, err := Handle(ctx, h.endpoint, msg, func(s ConnState) { state = s })
		if err != nil {
			h.handleFailed(log, state, err)
			return
		}

		state = StateWriting
		h.setDeadline(conn.SetWriteDeadline)
		if err := h.framer.WriteMessage(conn, out); err != nil {
			h.metrics.request(resultWriteError, 0)
			if ctx.Err() == nil {
				log.Warn("write response failed", "err", newError(KindIO, "write", err))
			}
			return
		}
		served++
		h.metrics.request(resultOK, time.Since(start).Seconds())
	}
}

func (h *Handler) setDeadline(set func(time.Time) error) {
	var deadline time.Time
	if d := h.idle(); d > 0 {
		deadline = time.Now().Add(d)
	}
	_ = set(deadline)
}

func (h *Handler) readFailed(ctx context.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, io.EOF):
		// Orderly close between requests.
	case ctx.Err() != nil || errors.Is(err, net.ErrClosed):
		log.Debug("connection closed by server", "err", err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		log.Info("idle timeout, closing connection", "idle_timeout", h.idle())
	case errors.Is(err, wire.ErrFrameTooLarge):
		h.metrics.request(resultDecodeError, 0)
		log.Info("dropping oversized request", "err", err)
	default:
		log.Warn("read request failed", "err", newError(KindIO, "read", err))
	}
}

// handleFailed records and logs an endpoint failure in state.
func (h *Handler) handleFailed(log *slog.Logger, state ConnState, err error) {
	if KindOf(err) == KindDecode {
		h.metrics.request(resultDecodeError, 0)
		log.Info("dropping malformed request", "state", state, "err", err)
		return
	}
	h.metrics.request(resultQueryError, 0)
	log.Error("request failed", "state", state, "err", err)
}

// Package client talks to the telemetry services over TCP.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oleksiiilienko/hostfacts/internal/telemetry"
	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

// DialTimeout bounds connection attempts.
const DialTimeout = 200 * time.Millisecond

const readBufferSize = 64 * 1024

// Client holds one connection and issues requests on it one at a time.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	framer wire.Framer
	buf    []byte
}

// Dial connects to addr with DialTimeout. framing must match the server.
func Dial(ctx context.Context, addr, framing string) (*Client, error) {
	framer, err := wire.ParseFraming(framing)
	if err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, framer: framer, buf: make([]byte, readBufferSize)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Memory asks the memory service for free memory in unit.
func (c *Client) Memory(ctx context.Context, unit telemetry.MemoryUnit) (telemetry.MemoryResponse, error) {
	return roundTrip[telemetry.MemoryResponse](ctx, c, telemetry.MemoryRequest{Unit: unit})
}

// Process asks the process service for its priority and threads.
func (c *Client) Process(ctx context.Context) (telemetry.ProcessResponse, error) {
	return roundTrip[telemetry.ProcessResponse](ctx, c, telemetry.ProcessRequest{})
}

// Send writes an arbitrary payload as one message and returns the raw reply.
func (c *Client) Send(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	if err := c.framer.WriteMessage(c.conn, payload); err != nil {
		return nil, err
	}
	msg, err := c.framer.ReadMessage(c.conn, c.buf)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	return out, nil
}

func roundTrip[Resp any](ctx context.Context, c *Client, req any) (Resp, error) {
	var zero Resp
	payload, err := wire.Encode(req)
	if err != nil {
		return zero, err
	}
	reply, err := c.Send(ctx, payload)
	if err != nil {
		return zero, err
	}
	resp, err := wire.Decode[Resp](reply)
	if err != nil {
		return zero, fmt.Errorf("response: %w", err)
	}
	return resp, nil
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleksiiilienko/hostfacts/internal/config"
	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

type echoRequest struct {
	Unit string `json:"unit"`
}

func (r *echoRequest) Validate() error {
	if r.Unit == "" {
		return errors.New("missing unit")
	}
	return nil
}

type echoResponse struct {
	Unit string `json:"unit"`
	Seq  int64  `json:"seq"`
}

// newEchoEndpoint echoes the unit back with a server-wide sequence number.
func newEchoEndpoint() Endpoint {
	var seq atomic.Int64
	return NewEndpoint("echo", func(_ context.Context, req echoRequest) (echoResponse, error) {
		return echoResponse{Unit: req.Unit, Seq: seq.Add(1)}, nil
	})
}

func failingEndpoint(err error) Endpoint {
	return NewEndpoint("failing", func(_ context.Context, _ echoRequest) (echoResponse, error) {
		return echoResponse{}, err
	})
}

// unencodableEndpoint answers with a value the JSON encoder rejects.
func unencodableEndpoint() Endpoint {
	return NewEndpoint("unencodable", func(_ context.Context, _ echoRequest) (float64, error) {
		return math.Inf(1), nil
	})
}

func testConfig(mode, framing string) *config.Config {
	cfg := config.MemoryDefaults()
	cfg.Bind = "127.0.0.1"
	cfg.Port = 0
	cfg.AdminAddr = ""
	cfg.AcceptMode = mode
	cfg.Framing = framing
	return cfg
}

// startServer serves ep on a loopback listener until the test ends.
func startServer(t *testing.T, cfg *config.Config, ep Endpoint, opts ...Option) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return startServerOn(t, ln, cfg, ep, opts...)
}

func startServerOn(t *testing.T, ln net.Listener, cfg *config.Config, ep Endpoint, opts ...Option) string {
	t.Helper()
	startServing(t, ln, cfg, ep, opts...)
	return ln.Addr().String()
}

// startServing is startServerOn for tests that inspect the server itself.
func startServing(t *testing.T, ln net.Listener, cfg *config.Config, ep Endpoint, opts ...Option) *Server {
	t.Helper()
	srv, err := New(cfg, ep, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv
}

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	framer wire.Framer
	buf    []byte
}

func dialTest(t *testing.T, addr, framing string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	framer, err := wire.ParseFraming(framing)
	require.NoError(t, err)
	return &testClient{t: t, conn: conn, framer: framer, buf: make([]byte, 4096)}
}

func (c *testClient) send(payload string) {
	c.t.Helper()
	require.NoError(c.t, c.framer.WriteMessage(c.conn, []byte(payload)))
}

func (c *testClient) recv() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return c.framer.ReadMessage(c.conn, c.buf)
}

func (c *testClient) roundTrip(unit string) echoResponse {
	c.t.Helper()
	c.send(`{"unit":"` + unit + `"}`)
	msg, err := c.recv()
	require.NoError(c.t, err)
	resp, err := wire.Decode[echoResponse](msg)
	require.NoError(c.t, err)
	return resp
}

// expectClosed asserts the server closes the connection without sending data.
func (c *testClient) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, err := c.conn.Read(make([]byte, 64))
	assert.Zero(c.t, n, "server sent data before closing")
	require.Error(c.t, err)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.t.Fatal("connection was not closed by the server")
	}
}

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

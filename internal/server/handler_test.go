package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

func newTestHandler(t *testing.T, ep Endpoint) *Handler {
	t.Helper()
	return &Handler{
		endpoint: ep,
		framer:   wire.LengthPrefixed{},
		bufSize:  1024,
		idle:     func() time.Duration { return time.Second },
		logger:   testLogger(),
		metrics:  newMetrics(newRegistry(), "test"),
	}
}

// servePipe runs h on one end of an in-memory pipe and returns the other end
// plus a channel closed when Serve returns.
func servePipe(ctx context.Context, h *Handler) (net.Conn, <-chan struct{}) {
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(ctx, "pipe", server)
	}()
	return client, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not return")
	}
}

func TestHandler_ServesUntilPeerCloses(t *testing.T) {
	h := newTestHandler(t, newEchoEndpoint())
	client, done := servePipe(context.Background(), h)

	for _, unit := range []string{"Bytes", "GigaBytes"} {
		require.NoError(t, h.framer.WriteMessage(client, []byte(`{"unit":"`+unit+`"}`)))
		msg, err := h.framer.ReadMessage(client, make([]byte, 256))
		require.NoError(t, err)
		resp, err := wire.Decode[echoResponse](msg)
		require.NoError(t, err)
		assert.Equal(t, unit, resp.Unit)
	}
	require.NoError(t, client.Close())
	waitDone(t, done)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(resultOK)))
}

func TestHandler_WriteFailureRecorded(t *testing.T) {
	h := newTestHandler(t, newEchoEndpoint())
	client, done := servePipe(context.Background(), h)

	// The pipe write returns once the handler has read the whole request.
	require.NoError(t, h.framer.WriteMessage(client, []byte(`{"unit":"Bytes"}`)))
	require.NoError(t, client.Close())
	waitDone(t, done)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(resultWriteError)))
	assert.Zero(t, testutil.ToFloat64(h.metrics.requests.WithLabelValues(resultOK)))
}

func TestHandler_QueryFailureClosesConnection(t *testing.T) {
	h := newTestHandler(t, failingEndpoint(errors.New("facts unavailable")))
	client, done := servePipe(context.Background(), h)
	defer client.Close()

	require.NoError(t, h.framer.WriteMessage(client, []byte(`{"unit":"Bytes"}`)))
	waitDone(t, done)

	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(resultQueryError)))
}

func TestHandler_CancelledContextReturnsImmediately(t *testing.T) {
	h := newTestHandler(t, newEchoEndpoint())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, done := servePipe(ctx, h)
	defer client.Close()
	waitDone(t, done)
}

func TestHandler_LogsStageOfFailure(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		payload string
		want    string
	}{
		{"decode", newEchoEndpoint(), `{"unit":`, "last_state=decoding"},
		{"query", failingEndpoint(errors.New("facts unavailable")), `{"unit":"Bytes"}`, "last_state=querying"},
		{"encode", unencodableEndpoint(), `{"unit":"Bytes"}`, "last_state=encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h := newTestHandler(t, tt.ep)
			h.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

			client, done := servePipe(context.Background(), h)
			defer client.Close()
			require.NoError(t, h.framer.WriteMessage(client, []byte(tt.payload)))
			waitDone(t, done)

			assert.Contains(t, logs.String(), tt.want)
		})
	}
}

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "awaiting_request", StateAwaitingRequest.String())
	assert.Equal(t, "decoding", StateDecoding.String())
	assert.Equal(t, "querying", StateQuerying.String())
	assert.Equal(t, "encoding", StateEncoding.String())
	assert.Equal(t, "writing", StateWriting.String())
	assert.Equal(t, "closed", StateClosed.String())
}

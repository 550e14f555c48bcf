package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWork struct {
	id      int
	release chan struct{}
}

func TestNewPool(t *testing.T) {
	noop := func(context.Context, testWork) {}

	pool := NewPool(5, 50, noop)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 50, pool.queueSize)

	pool = NewPool(0, 50, noop)
	assert.Equal(t, 10, pool.workers)

	pool = NewPool(5, -1, noop)
	assert.Equal(t, 100, pool.queueSize)
}

func TestNewPool_NilProcessor(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[testWork](5, 10, nil)
	})
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, testWork) {})
	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolNotStarted)
}

func TestPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(2, 10, func(_ context.Context, _ testWork) {
		processed.Add(1)
	})

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	assert.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}

	// Stop drains what was already queued.
	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), processed.Load())

	assert.ErrorIs(t, pool.Submit(testWork{id: 99}), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second), "second Stop is a no-op")
}

func TestPool_QueueFull(t *testing.T) {
	started := make(chan struct{}, 1)
	pool := NewPool(1, 1, func(_ context.Context, w testWork) {
		started <- struct{}{}
		<-w.release
	})
	require.NoError(t, pool.Start(context.Background()))

	release := make(chan struct{})
	require.NoError(t, pool.Submit(testWork{id: 1, release: release}))
	<-started // the only worker is now busy

	require.NoError(t, pool.Submit(testWork{id: 2, release: release}))
	assert.ErrorIs(t, pool.Submit(testWork{id: 3, release: release}), ErrQueueFull)

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Submitted)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, int64(1), stats.Busy)
	assert.Equal(t, 1, stats.QueueDepth)

	close(release)
	<-started
	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(2), pool.Stats().Processed)
}

func TestPool_ContextCancelStopsWorkers(t *testing.T) {
	pool := NewPool(3, 3, func(ctx context.Context, _ testWork) {
		<-ctx.Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(testWork{id: 1}))

	cancel()
	assert.NoError(t, pool.Stop(5*time.Second))
}

func TestPool_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	started := make(chan struct{})
	pool := NewPool(1, 1, func(context.Context, testWork) {
		close(started)
		<-block
	})
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{}))
	<-started

	assert.ErrorIs(t, pool.Stop(50*time.Millisecond), ErrStopTimeout)
}

func TestPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, w testWork) {
		started <- struct{}{}
		<-w.release
	}, WithMetrics[testWork](reg, "test_pool"))
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{release: release}))
	<-started
	require.NoError(t, pool.Submit(testWork{release: release}))
	require.ErrorIs(t, pool.Submit(testWork{release: release}), ErrQueueFull)

	assert.Equal(t, 1.0, testutil.ToFloat64(pool.metrics.busy))
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.metrics.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.metrics.dropped))

	count, err := testutil.GatherAndCount(reg, "test_pool_queue_depth", "test_pool_busy_workers", "test_pool_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	close(release)
	<-started
	require.NoError(t, pool.Stop(5*time.Second))
}

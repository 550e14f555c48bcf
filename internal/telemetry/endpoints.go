package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/oleksiiilienko/hostfacts/internal/facts"
	"github.com/oleksiiilienko/hostfacts/internal/server"
)

// Service names used for logging, metrics and the admin surface.
const (
	MemoryServiceName  = "memfactsd"
	ProcessServiceName = "procfactsd"
)

type options struct {
	now    func() time.Time
	offset time.Duration
}

// Option configures an endpoint.
type Option func(*options)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithOffset sets the offset added to the clock before rendering timestamps.
func WithOffset(offset time.Duration) Option {
	return func(o *options) { o.offset = offset }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, offset: DefaultOffset}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMemoryEndpoint answers MemoryRequest documents from p.
func NewMemoryEndpoint(p facts.Provider, opts ...Option) server.Endpoint {
	o := newOptions(opts)
	return server.NewEndpoint(MemoryServiceName, func(_ context.Context, req MemoryRequest) (MemoryResponse, error) {
		return queryMemory(p, o, req)
	})
}

// NewProcessEndpoint answers ProcessRequest documents from p.
func NewProcessEndpoint(p facts.Provider, opts ...Option) server.Endpoint {
	o := newOptions(opts)
	return server.NewEndpoint(ProcessServiceName, func(_ context.Context, _ ProcessRequest) (ProcessResponse, error) {
		return queryProcess(p, o)
	})
}

func queryMemory(p facts.Provider, o options, req MemoryRequest) (MemoryResponse, error) {
	free, err := p.FreeMemoryBytes()
	if err != nil {
		return MemoryResponse{}, fmt.Errorf("free memory: %w", err)
	}
	hostname, err := p.Hostname()
	if err != nil {
		return MemoryResponse{}, err
	}
	username, err := p.CurrentUsername()
	if err != nil {
		return MemoryResponse{}, err
	}
	return MemoryResponse{
		Hostname:   hostname,
		Username:   username,
		FreeMemory: ConvertBytes(free, req.Unit),
		Unit:       req.Unit.Label(),
		Timestamp:  Timestamp(o.now(), o.offset),
	}, nil
}

func queryProcess(p facts.Provider, o options) (ProcessResponse, error) {
	priority, err := p.SchedulingPriority()
	if err != nil {
		return ProcessResponse{}, fmt.Errorf("priority: %w", err)
	}
	ids, err := p.ThreadIDs()
	if err != nil {
		return ProcessResponse{}, fmt.Errorf("thread ids: %w", err)
	}
	if ids == nil {
		ids = []uint32{}
	}
	return ProcessResponse{
		Priority:  priority,
		ThreadIDs: ids,
		Timestamp: Timestamp(o.now(), o.offset),
	}, nil
}

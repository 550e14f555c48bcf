package server

import (
	"context"
	"fmt"

	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

// Endpoint turns one request document into one response document in three
// stages. Handle drives them.
type Endpoint interface {
	// Name identifies the service in logs and metrics.
	Name() string
	// Decode parses and validates a request document.
	Decode(payload []byte) (any, error)
	// Query answers a request returned by Decode.
	Query(ctx context.Context, req any) (any, error)
	// Encode renders a response returned by Query.
	Encode(resp any) ([]byte, error)
}

// Handle runs the stages of ep on payload. step, if not nil, is called with
// StateDecoding, StateQuerying and StateEncoding as each stage starts.
// Failures are classified as KindDecode or KindQuery.
func Handle(ctx context.Context, ep Endpoint, payload []byte, step func(ConnState)) ([]byte, error) {
	if step == nil {
		step = func(ConnState) {}
	}

	step(StateDecoding)
	req, err := ep.Decode(payload)
	if err != nil {
		return nil, newError(KindDecode, "decode", err)
	}
	step(StateQuerying)
	resp, err := ep.Query(ctx, req)
	if err != nil {
		return nil, newError(KindQuery, "query", err)
	}
	step(StateEncoding)
	out, err := ep.Encode(resp)
	if err != nil {
		return nil, newError(KindQuery, "encode", err)
	}
	return out, nil
}

// QueryFunc produces the response for a decoded request.
type QueryFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

type endpoint[Req, Resp any] struct {
	name  string
	query QueryFunc[Req, Resp]
}

// NewEndpoint builds an Endpoint that decodes Req with the wire codec, calls
// query and encodes its Resp.
func NewEndpoint[Req, Resp any](name string, query QueryFunc[Req, Resp]) Endpoint {
	return &endpoint[Req, Resp]{name: name, query: query}
}

func (e *endpoint[Req, Resp]) Name() string { return e.name }

func (e *endpoint[Req, Resp]) Decode(payload []byte) (any, error) {
	return wire.Decode[Req](payload)
}

func (e *endpoint[Req, Resp]) Query(ctx context.Context, req any) (any, error) {
	r, ok := req.(Req)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected request type %T", e.name, req)
	}
	return e.query(ctx, r)
}

func (e *endpoint[Req, Resp]) Encode(resp any) ([]byte, error) {
	return wire.Encode(resp)
}

package server

import (
	"errors"
	"fmt"

	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

// Kind classifies engine failures by how far their effect reaches.
type Kind int

const (
	KindUnknown Kind = iota
	// KindBindConflict: another listener owns the port. Fatal for the process.
	KindBindConflict
	// KindAccept: a single accept attempt failed. The admission loop continues.
	KindAccept
	// KindDecode: a request could not be parsed. The connection is closed.
	KindDecode
	// KindQuery: the facts provider failed. The connection is closed.
	KindQuery
	// KindIO: read or write on a connection failed. The connection is closed.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindBindConflict:
		return "bind_conflict"
	case KindAccept:
		return "accept"
	case KindDecode:
		return "decode"
	case KindQuery:
		return "query"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// ErrBindConflict matches every KindBindConflict error.
var ErrBindConflict = errors.New("port already in use")

// Error is a classified engine error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrBindConflict && e.Kind == KindBindConflict
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err. Unclassified decode failures from
// the wire package report KindDecode.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, wire.ErrDecode) {
		return KindDecode
	}
	return KindUnknown
}

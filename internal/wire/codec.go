// Package wire encodes and decodes the JSON documents exchanged with telemetry
// clients and delimits them on a byte stream.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode marks a request that could not be parsed into the expected shape.
var ErrDecode = errors.New("malformed request")

// Validator is implemented by request types that need checks beyond JSON syntax.
type Validator interface {
	Validate() error
}

// Encode serializes v as a single JSON document.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// Decode parses data as exactly one JSON document of type T. Empty input,
// trailing bytes after the document and failed validation all wrap ErrDecode.
func Decode[T any](data []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, fmt.Errorf("%w: empty document", ErrDecode)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return v, nil
}

// Package telemetry defines the memory and process payloads and the endpoints
// that answer them from a facts.Provider.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MemoryRequest asks the memory service for free memory in Unit.
type MemoryRequest struct {
	Unit MemoryUnit `json:"unit"`
}

func (r *MemoryRequest) Validate() error {
	if r.Unit == "" {
		return errors.New("missing unit")
	}
	if !r.Unit.Valid() {
		return fmt.Errorf("unknown unit %q", r.Unit)
	}
	return nil
}

// MemoryResponse is the memory service answer.
type MemoryResponse struct {
	Hostname   string  `json:"hostname"`
	Username   string  `json:"username"`
	FreeMemory float64 `json:"free_memory"`
	Unit       string  `json:"unit"`
	Timestamp  string  `json:"timestamp"`
}

// ProcessRequest carries no data; the request field must be null or absent.
type ProcessRequest struct {
	Request json.RawMessage `json:"request"`
}

var jsonNull = []byte("null")

func (r *ProcessRequest) Validate() error {
	if len(r.Request) == 0 || bytes.Equal(bytes.TrimSpace(r.Request), jsonNull) {
		return nil
	}
	return fmt.Errorf("request must be null, got %s", r.Request)
}

// ProcessResponse is the process service answer.
type ProcessResponse struct {
	Priority  int32    `json:"priority"`
	ThreadIDs []uint32 `json:"thread_ids"`
	Timestamp string   `json:"timestamp"`
}

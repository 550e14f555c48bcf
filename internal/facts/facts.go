// Package facts supplies the host and process values reported by the
// telemetry services.
package facts

import (
	"errors"
	"fmt"
	"os"
	"os/user"
)

// ErrUnsupported is returned by System on platforms without a collector for
// the requested value.
var ErrUnsupported = errors.New("not supported on this platform")

// Provider is the source of the values reported by the telemetry services.
// Every call is independent; implementations hold no state between calls.
type Provider interface {
	FreeMemoryBytes() (uint64, error)
	Hostname() (string, error)
	CurrentUsername() (string, error)
	SchedulingPriority() (int32, error)
	ThreadIDs() ([]uint32, error)
}

// System reads values from the running host and process.
type System struct{}

// NewSystem returns the host-backed Provider.
func NewSystem() *System {
	return &System{}
}

var _ Provider = (*System)(nil)

func (s *System) Hostname() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}
	return name, nil
}

func (s *System) CurrentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}
	return u.Username, nil
}

func (s *System) FreeMemoryBytes() (uint64, error) {
	return collectFreeMemory()
}

func (s *System) SchedulingPriority() (int32, error) {
	return collectPriority()
}

func (s *System) ThreadIDs() ([]uint32, error) {
	return collectThreadIDs()
}

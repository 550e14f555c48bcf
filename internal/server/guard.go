package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// EnsureSoleOwner probes the service port and fails with KindBindConflict when
// something already accepts connections on it. The dial uses the OS connect
// timeout. A second instance that binds between this probe and its own Listen
// is caught by classifyListenErr instead.
func EnsureSoleOwner(bind string, port int) error {
	addr := net.JoinHostPort(probeHost(bind), strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil
	}
	_ = conn.Close()
	return newError(KindBindConflict, "singleton check",
		fmt.Errorf("%w: another instance is already running on port %d", ErrBindConflict, port))
}

// probeHost maps wildcard bind addresses to loopback.
func probeHost(bind string) string {
	switch bind {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::", "[::]":
		return "::1"
	default:
		return bind
	}
}

// classifyListenErr reports EADDRINUSE as a bind conflict.
func classifyListenErr(addr string, err error) error {
	if errors.Is(err, syscall.EADDRINUSE) {
		return newError(KindBindConflict, "listen",
			fmt.Errorf("%w: %s: %v", ErrBindConflict, addr, err))
	}
	return fmt.Errorf("listen on %s: %w", addr, err)
}

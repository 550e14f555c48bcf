//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package facts

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// collectPriority returns the nice value of the current process.
func collectPriority() (int32, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("getpriority: %w", err)
	}
	return niceFromGetpriority(prio), nil
}

//go:build darwin

package facts

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// collectFreeMemory reports the pages on the free list, the value vm_stat
// prints as "Pages free".
func collectFreeMemory() (uint64, error) {
	free, err := unix.SysctlUint32("vm.page_free_count")
	if err != nil {
		return 0, fmt.Errorf("sysctl vm.page_free_count: %w", err)
	}
	pageSize, err := unix.SysctlUint32("hw.pagesize")
	if err != nil {
		return 0, fmt.Errorf("sysctl hw.pagesize: %w", err)
	}
	return uint64(free) * uint64(pageSize), nil
}

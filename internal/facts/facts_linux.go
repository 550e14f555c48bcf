//go:build linux

package facts

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"golang.org/x/sys/unix"
)

func collectFreeMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return uint64(info.Freeram) * uint64(info.Unit), nil
}

// niceFromGetpriority converts the raw getpriority syscall result, which is
// 20-nice on Linux.
func niceFromGetpriority(raw int) int32 {
	return int32(20 - raw)
}

func collectThreadIDs() ([]uint32, error) {
	return readTaskDir("/proc/self/task")
}

// readTaskDir lists the numeric entries of a /proc/<pid>/task directory in
// ascending order.
func readTaskDir(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	ids := make([]uint32, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(tid))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

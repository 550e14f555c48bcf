//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package facts

// The libc getpriority wrapper already returns the nice value.
func niceFromGetpriority(raw int) int32 {
	return int32(raw)
}

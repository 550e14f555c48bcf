//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package facts

func collectPriority() (int32, error) {
	return 0, ErrUnsupported
}

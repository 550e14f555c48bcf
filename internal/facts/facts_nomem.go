//go:build !linux && !darwin

package facts

func collectFreeMemory() (uint64, error) {
	return 0, ErrUnsupported
}

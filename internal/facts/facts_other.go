//go:build !linux

package facts

// Thread ids come from /proc/self/task, which only Linux provides.
func collectThreadIDs() ([]uint32, error) {
	return nil, ErrUnsupported
}

package telemetry

import (
	"fmt"
	"time"
)

// MemoryUnit selects the unit free memory is reported in.
type MemoryUnit string

const (
	UnitBytes     MemoryUnit = "Bytes"
	UnitMegaBytes MemoryUnit = "MegaBytes"
	UnitGigaBytes MemoryUnit = "GigaBytes"
)

const (
	mebi = 1024 * 1024
	gibi = 1024 * 1024 * 1024
)

// ParseMemoryUnit accepts the wire names plus the short labels.
func ParseMemoryUnit(s string) (MemoryUnit, error) {
	switch s {
	case "Bytes", "bytes", "B":
		return UnitBytes, nil
	case "MegaBytes", "MB", "mb":
		return UnitMegaBytes, nil
	case "GigaBytes", "GB", "gb":
		return UnitGigaBytes, nil
	default:
		return "", fmt.Errorf("unknown memory unit %q", s)
	}
}

// Valid reports whether u is one of the known units.
func (u MemoryUnit) Valid() bool {
	switch u {
	case UnitBytes, UnitMegaBytes, UnitGigaBytes:
		return true
	}
	return false
}

// Label is the unit string sent back in memory responses.
func (u MemoryUnit) Label() string {
	switch u {
	case UnitMegaBytes:
		return "MB"
	case UnitGigaBytes:
		return "GB"
	default:
		return "bytes"
	}
}

// ConvertBytes expresses a byte count in unit.
func ConvertBytes(bytes uint64, unit MemoryUnit) float64 {
	switch unit {
	case UnitMegaBytes:
		return float64(bytes) / mebi
	case UnitGigaBytes:
		return float64(bytes) / gibi
	default:
		return float64(bytes)
	}
}

// DefaultOffset is added to the wall clock before rendering timestamps.
const DefaultOffset = 3 * time.Hour

// Timestamp renders the time of day of now shifted by offset as hh:mm:ss.
func Timestamp(now time.Time, offset time.Duration) string {
	t := now.Unix() + int64(offset/time.Second)
	// Keep pre-epoch instants in range.
	day := ((t % 86400) + 86400) % 86400
	h := day / 3600
	m := day % 3600 / 60
	s := day % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

package boxroot

import (
	"errors"

	"github.com/boxroot-go/boxroot/internal/slotpool"
)

// Status is the lifecycle state of a Registry, mirroring the original's
// status enum: every operation other than Status itself is only valid
// while the registry is Running.
type Status int32

const (
	StatusNotSetup Status = iota
	StatusRunning
	StatusInvalid
	StatusTornDown
)

func (s Status) String() string {
	switch s {
	case StatusNotSetup:
		return "not_setup"
	case StatusRunning:
		return "running"
	case StatusInvalid:
		return "invalid"
	case StatusTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Sentinel errors for the two operations that can fail per-call. Wrapped
// with fmt.Errorf("%w", ...) at call sites, never given stack traces: an
// allocator's error paths are few and well-known ahead of time.
var (
	// ErrNoDomainLock is returned when Create or Modify is called without
	// the caller holding its domain's lock.
	ErrNoDomainLock = errors.New("boxroot: domain lock not held")
	// ErrOutOfMemory is returned when the platform allocator could not
	// satisfy a fresh pool allocation; an alias of slotpool's sentinel so
	// the same error value is produced whether a caller checks against
	// this package or the one that actually allocates pools.
	ErrOutOfMemory = slotpool.ErrOutOfMemory
	// ErrNotRunning is returned by Create and Modify once the registry is
	// StatusInvalid or StatusTornDown, and wrapped by Setup in those states.
	ErrNotRunning = errors.New("boxroot: registry is not running")
)

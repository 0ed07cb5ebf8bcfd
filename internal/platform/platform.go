// Package platform provides the few OS- and architecture-dependent
// primitives the pool allocator needs: page-aligned allocation, a mutex
// type, and relaxed/acquire/release atomic helpers.
//
// The rest of boxroot is written against this package instead of against
// unix/sync/atomic directly, the way runtime/mmap.go and runtime/stubs.go
// isolate the Go runtime's own allocator from the handful of primitives
// that differ by platform.
package platform

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mutex wraps sync.Mutex. A distinct type (rather than using sync.Mutex
// directly everywhere) keeps every lock boxroot takes greppable and gives
// a single place to add contention instrumentation later.
type Mutex struct {
	mu sync.Mutex
}

func (m *Mutex) Lock()   { m.mu.Lock() }
func (m *Mutex) Unlock() { m.mu.Unlock() }

// Page is a page-aligned allocation obtained from the OS. Size is the
// region the caller asked for; mapBase is the whole underlying mmap
// region, which AlignedAlloc over-maps by one alignment unit so that
// Addr can be rounded up to the requested alignment.
type Page struct {
	Addr    uintptr
	Size    uintptr
	mapBase []byte
}

// AlignedAlloc reserves a zeroed, anonymous mapping of size bytes whose
// address is a multiple of align. align must be a power of two.
//
// mmap on Linux/amd64 already returns page-aligned addresses, but nothing
// guarantees alignment to values larger than the page size (boxroot pools
// want 16 KiB alignment, which is a multiple of the 4 KiB page size but
// not implied by it). Absent a posix_memalign-equivalent in x/sys/unix,
// we follow the fallback the design notes call for: over-map by one
// alignment unit and hand back the rounded-up address, keeping the
// original mapping around so it can be unmapped in one piece later.
func AlignedAlloc(size, align uintptr) (*Page, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("platform: alignment %d is not a power of two", align)
	}
	mapLen := size + align
	b, err := unix.Mmap(-1, 0, int(mapLen), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("platform: mmap %d bytes: %w", mapLen, err)
	}
	base := uintptr(unsafe.Pointer(&b[0]))
	aligned := (base + align - 1) &^ (align - 1)
	return &Page{Addr: aligned, Size: size, mapBase: b}, nil
}

// Free releases a Page obtained from AlignedAlloc.
func Free(p *Page) error {
	if p == nil {
		return nil
	}
	if err := unix.Munmap(p.mapBase); err != nil {
		return fmt.Errorf("platform: munmap: %w", err)
	}
	return nil
}

// The atomic helpers below name the ordering the original C uses
// (relaxed/release/acquire-fence) even though Go's sync/atomic already
// defines every operation with sequentially-consistent semantics at least
// as strong as what C calls "release"/"acquire". The names exist so the
// call sites read the same as the spec they implement, not because Go
// needs three different primitives.

// LoadRelaxed reads an atomic counter.
func LoadRelaxed(a *int64) int64 { return atomic.LoadInt64(a) }

// StoreRelaxed writes an atomic counter.
func StoreRelaxed(a *int64, v int64) { atomic.StoreInt64(a, v) }

// DecrRelease decrements an atomic counter with release ordering, pairing
// with AcquireFence at the drain site that proves exclusive ownership by
// observing zero.
func DecrRelease(a *int64) int64 { return atomic.AddInt64(a, -1) }

// AcquireFence is a documentation-only marker: on Go's memory model,
// every sync/atomic operation already acts as a full barrier, so there is
// nothing to execute here. It exists so the code that proves exclusive
// ownership by observing a zero anticipated count (the no-STW drain in
// internal/domain) names the synchronization it relies on
// instead of silently depending on a language guarantee the reader may
// not know about.
func AcquireFence() {}

// LoadPointerRelaxed/StorePointerRelaxed/ExchangePointerRelaxed manage the
// lock-free delayed free list's head pointer, stored as a uintptr to keep
// the pool's roots slice (which holds both data and free-list links)
// free of Go pointers the GC would otherwise have to trace.
func LoadPointerRelaxed(a *uintptr) uintptr { return atomic.LoadUintptr(a) }

func StorePointerRelaxed(a *uintptr, v uintptr) { atomic.StoreUintptr(a, v) }

func ExchangePointerRelaxed(a *uintptr, v uintptr) uintptr {
	return atomic.SwapUintptr(a, v)
}

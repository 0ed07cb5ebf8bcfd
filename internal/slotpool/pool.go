// Package slotpool implements the fixed-size slot pool: a page-aligned
// region of memory holding POOL_CAPACITY one-word slots, a local free
// list, a lock-free delayed (remote) free list, and the scanning loops
// the GC integration layer drives.
//
// Grounded on runtime/mfixalloc.go's free-list allocator shape and
// runtime/lfstack.go's lock-free, push-only list, specialized to the
// pool/slot layout of original_source/boxroot/boxroot.c.
package slotpool

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/boxroot-go/boxroot/internal/platform"
	"github.com/boxroot-go/boxroot/internal/ring"
	"github.com/boxroot-go/boxroot/internal/stats"
)

// ErrOutOfMemory is returned by New when the platform allocator cannot
// satisfy a fresh pool's backing page; the boxroot package re-exports
// this value as its own ErrOutOfMemory so callers can test either
// symbol with errors.Is.
var ErrOutOfMemory = errors.New("slotpool: platform allocator exhausted")

// Pool is a fixed-size, page-aligned block of slots plus its
// bookkeeping. Bookkeeping lives on the Go heap; only the roots array
// itself lives in the raw mmap'd page, since it is the one piece of
// memory whose address must be directly recoverable from a handle by
// bitmasking (spec.md §3's "owning pool from a raw slot pointer").
type Pool struct {
	page  *platform.Page
	roots []uintptr // len == PoolCapacity, backed by page's memory

	mu platform.Mutex // protects delayed-list flush and full-pool adoption

	// local free list; mutation requires the owning domain's lock.
	flNext       uintptr
	flEnd        uintptr
	flAllocCount int32
	flDomainID   int32
	flClass      Class

	// delayed (remote) free list; pushes are lock-free, drains require
	// one of the three exclusivity proofs in spec.md §4.3.
	dNext       uintptr // atomic
	dEnd        uintptr // written only by whichever push observes an empty list
	dAllocCount int64   // atomic, signed

	prev, next *Pool
}

var (
	registryMu sync.Mutex
	registry   = map[uintptr]*Pool{}
)

// emptySentinel returns the value denoting "no free slots": the pool's
// own base address. Conveniently this also satisfies IsPoolMember, which
// is how is_empty_free_list and is_pool_member share a representation in
// the original.
func (p *Pool) emptySentinel() uintptr { return p.page.Addr }

// Base returns the pool's base address, the value recovered from any
// slot handle by masking off the low PoolLogSize bits.
func (p *Pool) Base() uintptr { return p.page.Addr }

// New allocates a fresh pool: a PoolSize-aligned mapping, its slots
// linked into a free list terminating at the pool's own base address,
// and an UNTRACKED/unowned classification (the caller, typically
// createSlow, assigns it to a domain and YOUNG next).
func New() (*Pool, error) {
	page, err := platform.AlignedAlloc(PoolSize, PoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	rootsPtr := (*uintptr)(unsafe.Pointer(page.Addr + headerBytes))
	p := &Pool{
		page:       page,
		roots:      unsafe.Slice(rootsPtr, PoolCapacity),
		flDomainID: -1,
		flClass:    Untracked,
	}
	p.prev, p.next = p, p

	base := p.Base()
	for i := 0; i < PoolCapacity-1; i++ {
		p.roots[i] = base + headerBytes + uintptr(i+1)*wordSize
	}
	p.roots[PoolCapacity-1] = base // end-of-list sentinel
	p.flNext = base + headerBytes
	p.flEnd = base + headerBytes + uintptr(PoolCapacity-1)*wordSize
	p.flAllocCount = 0

	platform.StorePointerRelaxed(&p.dNext, base)
	platform.StoreRelaxed(&p.dAllocCount, 0)

	registryMu.Lock()
	registry[base] = p
	registryMu.Unlock()

	stats.PoolAllocated()
	return p, nil
}

// Release returns a pool's backing memory to the OS and removes it from
// the recovery registry. Only safe once the pool is guaranteed
// unreachable (teardown, or freeing the FREE ring at a major collection).
func (p *Pool) Release() error {
	registryMu.Lock()
	delete(registry, p.Base())
	registryMu.Unlock()
	stats.PoolFreed()
	return platform.Free(p.page)
}

// FromSlot recovers the owning pool of a slot handle by masking its low
// PoolLogSize bits and consulting the recovery registry. This plays the
// role of the C source's `Get_pool_header` bitmask-and-cast; a registry
// lookup is used instead of reinterpreting the mmap'd page as a Go
// struct, since casting raw OS memory to a pointer-containing Go struct
// is not something the language guarantees is safe to then dereference
// as ordinary heap memory (see DESIGN.md).
func FromSlot(handle uintptr) *Pool {
	base := handle &^ (PoolSize - 1)
	registryMu.Lock()
	p := registry[base]
	registryMu.Unlock()
	return p
}

// IsPoolMember reports whether v shares p's base address and so denotes
// either an allocated slot's content that happens to look like an
// in-pool address, or (as used internally) the free-list sentinel.
func IsPoolMember(v uintptr, p *Pool) bool {
	return p.Base() == v&^(PoolSize-1)
}

func (p *Pool) isEmptyFreeList(v uintptr) bool { return v == p.emptySentinel() }

// IsFull reports whether the local free list has no slots left.
func (p *Pool) IsFull() bool { return p.isEmptyFreeList(p.flNext) }

// AllocCount is the local view of allocated slots.
func (p *Pool) AllocCount() int32 { return p.flAllocCount }

// AnticipatedAllocCount combines the local and not-yet-drained remote
// view; always >= 0 outside of a race window the delayed counter's
// ordering rules out.
func (p *Pool) AnticipatedAllocCount() int32 {
	return p.flAllocCount + int32(platform.LoadRelaxed(&p.dAllocCount))
}

// Class returns the pool's current classification.
func (p *Pool) Class() Class { return p.flClass }

// SetClass sets the pool's classification; ownership requires the domain
// lock (or STW).
func (p *Pool) SetClass(c Class) { p.flClass = c }

// DomainID returns the id of the domain that currently owns this pool.
func (p *Pool) DomainID() int32 { return p.flDomainID }

// SetDomainID reassigns ownership; called on reclassification.
func (p *Pool) SetDomainID(id int32) { p.flDomainID = id }

// NotTooFull reports whether this pool is a candidate to move to the
// front of its ring instead of the back.
func (p *Pool) NotTooFull() bool { return NotTooFull(p.flAllocCount) }

// --- ring.Elem ---

func (p *Pool) RingNext() ring.Elem       { return p.next }
func (p *Pool) RingPrev() ring.Elem       { return p.prev }
func (p *Pool) SetRingNext(e ring.Elem)   { p.next = elemToPool(e) }
func (p *Pool) SetRingPrev(e ring.Elem)   { p.prev = elemToPool(e) }

func elemToPool(e ring.Elem) *Pool {
	if e == nil {
		return nil
	}
	return e.(*Pool)
}

// --- hot-path allocation/deallocation ---

// Alloc pops the head of the local free list and writes v into it,
// returning the new handle. ok is false if the pool is full (caller must
// take the slow path).
func (p *Pool) Alloc(v uintptr) (handle uintptr, ok bool) {
	head := p.flNext
	if p.isEmptyFreeList(head) {
		return 0, false
	}
	p.flNext = p.slotAt(head)
	p.flAllocCount++
	p.setSlotAt(head, v)
	return head, true
}

// LocalFree pushes handle onto the local free list (caller owns the
// pool's domain lock) and reports whether the deallocation-count
// threshold was just crossed, per spec.md §4.1's three delete cases.
func (p *Pool) LocalFree(handle uintptr) (thresholdCrossed bool) {
	wasEmpty := p.isEmptyFreeList(p.flNext)
	p.setSlotAt(handle, p.flNext)
	p.flNext = handle
	if wasEmpty {
		p.flEnd = handle
	}
	p.flAllocCount--
	return ThresholdCrossed(p.flAllocCount)
}

// RemoteFree is the lock-free push used for deallocations from a domain
// that does not own this pool (or holds no domain lock at all). It never
// fails, matching spec.md §7 ("cannot fail (atomic)").
func (p *Pool) RemoteFree(handle uintptr) {
	old := platform.ExchangePointerRelaxed(&p.dNext, handle)
	p.setSlotAt(handle, old)
	if p.isEmptyFreeList(old) {
		p.dEnd = handle
	}
	platform.DecrRelease(&p.dAllocCount)
}

// Lock/Unlock expose the pool mutex to callers that need to take it
// around a remote free with no domain lock held at all, or around a GC
// drain outside STW.
func (p *Pool) Lock()   { p.mu.Lock() }
func (p *Pool) Unlock() { p.mu.Unlock() }

// GC drains the delayed free list into the local one. Caller must hold
// one of the three exclusivity proofs from spec.md §4.3 (STW, an
// acquire-fenced observed-zero anticipated count, or the pool mutex).
func (p *Pool) GC() {
	if platform.LoadRelaxed(&p.dAllocCount) == 0 {
		return
	}
	if p.IsFull() {
		p.flEnd = p.dEnd
	}
	p.flAllocCount = p.AnticipatedAllocCount()
	platform.StoreRelaxed(&p.dAllocCount, 0)
	list := p.flNext
	p.flNext = platform.LoadPointerRelaxed(&p.dNext)
	platform.StorePointerRelaxed(&p.dNext, p.emptySentinel())
	p.setSlotAt(p.dEnd, list)
}

func (p *Pool) slotAt(addr uintptr) uintptr {
	return p.roots[p.index(addr)]
}

func (p *Pool) setSlotAt(addr uintptr, v uintptr) {
	p.roots[p.index(addr)] = v
}

func (p *Pool) index(addr uintptr) uintptr {
	return (addr - p.Base() - headerBytes) / wordSize
}

// ScanAction is called once per allocated slot found during a scan, with
// the slot's current value and a pointer to the cell so the host's
// moving GC can rewrite it in place.
type ScanAction func(v uintptr, cell *uintptr)

// ScanYoung is the specialized minor-collection scan: it walks every
// slot unconditionally and tests whether its value falls in the young
// heap range before calling action, rather than distinguishing
// allocated from free slots first. This branch-predicts well when the
// young/old mix is skewed (see original boxroot.c's scan_pool_young
// comment, ported verbatim in spirit).
func (p *Pool) ScanYoung(youngStart, youngRange uintptr, isBlock func(uintptr) bool, action ScanAction) int {
	work := 0
	for i := range p.roots {
		v := p.roots[i]
		if v-youngStart < youngRange && isBlock(v) {
			action(v, &p.roots[i])
		}
		work++
	}
	return work
}

// ScanGen is the count-driven general scan used outside minor
// collections: it stops once AnticipatedAllocCount allocations have been
// visited, distinguishing allocated from free slots via IsPoolMember.
func (p *Pool) ScanGen(action ScanAction) int {
	allocsToFind := int(p.AnticipatedAllocCount())
	i := 0
	for allocsToFind > 0 {
		v := p.roots[i]
		if !IsPoolMember(v, p) {
			allocsToFind--
			action(v, &p.roots[i])
		}
		i++
	}
	return i
}

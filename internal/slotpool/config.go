package slotpool

// Compile-time knobs. Spec keeps these as constants rather than runtime
// configuration (see boxroot's external-interfaces section): changing
// them changes the binary, not a flag.
const (
	// PoolLogSize is log2 of the pool size in bytes.
	PoolLogSize = 14
	// PoolSize is the size, in bytes, of one pool: a page-aligned region
	// the platform allocator hands back as a single unit.
	PoolSize = 1 << PoolLogSize

	wordSize = 8 // unsafe.Sizeof(uintptr(0)) on every platform we target

	// headerBytes reserves one word at the start of the mmap'd pool
	// region so that the pool's base address (the free-list's
	// end-of-list sentinel) never aliases the address of roots[0]; see
	// DESIGN.md for why this differs from the C source, where the
	// sentinel is the address of the whole `pool` struct and roots[]
	// starts after it naturally.
	headerBytes = wordSize

	// PoolCapacity is the number of slots per pool.
	PoolCapacity = (PoolSize - headerBytes) / wordSize

	// DeallocThreshold must be a power of two so that "threshold
	// crossed" reduces to a mask test. Recommended: PoolSize/2.
	DeallocThreshold = PoolSize / 2
)

// Class classifies a pool by generation, or UNTRACKED for an empty pool
// not currently scanned.
type Class int32

const (
	Young Class = iota
	Old
	Untracked
)

func (c Class) String() string {
	switch c {
	case Young:
		return "young"
	case Old:
		return "old"
	case Untracked:
		return "untracked"
	default:
		return "invalid"
	}
}

// NotTooFull reports whether a pool with the given local alloc count is a
// candidate to stay at the front of its ring (spec §4.2's
// "not too full" predicate).
func NotTooFull(allocCount int32) bool {
	return int(allocCount) <= DeallocThreshold/wordSize
}

// ThresholdCrossed reports whether decrementing alloc count to
// newAllocCount crosses a DeallocThreshold boundary, the trigger for the
// slow-path demotion check on delete. Ported as-is from boxroot.h's
// boxroot_free_slot: the mask is against DeallocThreshold directly (byte
// units), not DeallocThreshold/wordSize, so in practice (alloc counts
// never reach DeallocThreshold slots) this only fires when the pool just
// emptied out completely.
func ThresholdCrossed(newAllocCount int32) bool {
	return newAllocCount&(DeallocThreshold-1) == 0
}

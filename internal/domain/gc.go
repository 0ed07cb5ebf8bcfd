package domain

import (
	"github.com/boxroot-go/boxroot/internal/platform"
	"github.com/boxroot-go/boxroot/internal/ring"
	"github.com/boxroot-go/boxroot/internal/slotpool"
	"github.com/boxroot-go/boxroot/internal/stats"
)

// gcAndReclassify drains pool's delayed free list and reclassifies it: to
// UNTRACKED if it emptied out, to the front of its own class's ring if it
// is now merely not-too-full, or leaves it where it sits otherwise.
// target must be the real ring currently holding pool (rs.Young, rs.Old,
// or another real ring already rotated so pool is reachable from it).
// Rotating target's head to pool before handing it to Reclassify lets
// Reclassify's plain Pop update target's own Head field correctly even
// when pool was not already at the ring's front — addressing pool via a
// throwaway &ring.Ring{Head: pool} view instead would relink pool's
// neighbors but leave the real ring's Head dangling on a pool that just
// moved elsewhere. Matches original gc_and_reclassify_pool.
func gcAndReclassify(rs *Rings, target *ring.Ring, pool *slotpool.Pool, dom int) {
	target.SetHead(pool)
	pool.GC()
	switch {
	case pool.AllocCount() == 0:
		rs.Reclassify(target, dom, slotpool.Untracked)
	case pool.NotTooFull():
		rs.Reclassify(target, dom, pool.Class())
	}
}

// TryGCAndReclassifyOneNoSTW performs at most one reclassification: it
// walks source looking for a pool whose AnticipatedAllocCount is
// observed as zero (meaning nobody else can be concurrently pushing to
// its delayed list), synchronizes with that observation via an acquire
// fence, and GCs/reclassifies just that one pool. Called from the
// allocation slow path to keep remote-free stragglers from accumulating
// without paying for a full ring sweep on every call.
func TryGCAndReclassifyOneNoSTW(rs *Rings, source *ring.Ring, dom int) {
	if source.Empty() {
		return
	}
	start := source.Head
	p := start
	for {
		pool := p.(*slotpool.Pool)
		if pool.AnticipatedAllocCount() == 0 {
			platform.AcquireFence()
			gcAndReclassify(rs, source, pool, dom)
			return
		}
		p = p.RingNext()
		if p == start {
			return
		}
	}
}

// GCPoolRings empties the delayed free lists for dom's young and old
// rings and reclassifies pools as needed, after first demoting any
// current pool to young. Ported from gc_pool_rings; called at the start
// of every STW scan.
func (r *Registry) GCPoolRings(dom int) {
	stats.IncGCPoolRings()
	rs := r.RingsFor(dom)
	if rs.Current != nil {
		cur := rs.Current
		rs.Current = nil
		cur.SetClass(slotpool.Young)
		rs.Young.PushBack(cur)
	}
	gcWholeRing(rs, &rs.Young, dom)
	gcWholeRing(rs, &rs.Old, dom)
}

// gcWholeRing visits every pool in target once, draining any pending
// delayed frees and reclassifying pools that are now empty or merely
// not-too-full. This also catches pools that only ever saw local frees
// (so carried no delayed work to drain) but became empty or sparse while
// they were still the domain's Current pool, where reclassification is
// deliberately deferred (TryDemote never touches the Current pool) —
// the first scan after such a pool leaves Current is its only other
// chance to reclassify. Simpler than the original's in-place two-phase
// walk (which special-cases the head to avoid relinking pools that need
// no work) at the cost of a few extra ring operations on pools that
// don't reclassify — scanning work, the dominant cost at STW time, is
// unaffected. Pools are snapshotted up front because gcAndReclassify
// rotates target's head and may pop pools out of it as it goes; walking
// target.Head/RingNext live while also mutating it would skip or
// double-visit pools.
func gcWholeRing(rs *Rings, target *ring.Ring, dom int) {
	if target.Empty() {
		return
	}
	var pools []*slotpool.Pool
	start := target.Head
	for p := start; ; {
		pools = append(pools, p.(*slotpool.Pool))
		p = p.RingNext()
		if p == start {
			break
		}
	}
	for _, pool := range pools {
		gcAndReclassify(rs, target, pool, dom)
	}
}

// Package domain implements the per-domain pool rings and the pool
// classifier: which ring a pool belongs to, when it gets promoted,
// demoted, or freed, and the orphanage that holds a terminated domain's
// pools until a live domain adopts them.
//
// Grounded on runtime/mheap.go's class-indexed free lists (the same
// "move a span between size classes on thresholds" shape, here applied
// to pools instead of spans) and runtime/runtime2.go's per-P bookkeeping
// structs for the notion of "one ring set per owner".
package domain

import (
	"sync"

	"github.com/boxroot-go/boxroot/internal/ring"
	"github.com/boxroot-go/boxroot/internal/slotpool"
	"github.com/boxroot-go/boxroot/internal/stats"
)

// Rings is one domain's view of its pools: the pool currently being
// allocated from, and the young/old/free classification rings.
type Rings struct {
	Current *slotpool.Pool
	Young   ring.Ring
	Old     ring.Ring
	Free    ring.Ring
}

// Registry owns one Rings per domain id, created lazily, plus the
// orphanage shared across all domains.
type Registry struct {
	mu      sync.Mutex // guards byID; each *Rings itself is owned by its domain lock
	byID    map[int]*Rings
	orphan  Rings
	orphanM sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{byID: map[int]*Rings{}}
}

// RingsFor returns (creating if absent) the Rings for dom, mirroring
// init_pool_rings's lazy allocation.
func (r *Registry) RingsFor(dom int) *Rings {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.byID[dom]
	if !ok {
		rs = &Rings{}
		r.byID[dom] = rs
	}
	return rs
}

func popPool(rg *ring.Ring) *slotpool.Pool {
	e := rg.Pop()
	if e == nil {
		return nil
	}
	return e.(*slotpool.Pool)
}

// popAvailable pops the front of target if it is not full; a full front
// implies none behind it are available either, since not-too-full pools
// are always kept at the front (spec.md §4.2 step 5 / original
// pop_available).
func popAvailable(target *ring.Ring) *slotpool.Pool {
	if target.Empty() {
		return nil
	}
	if target.Head.(*slotpool.Pool).IsFull() {
		return nil
	}
	return popPool(target)
}

// SetCurrent installs p (possibly nil) as dom's current pool, classifying
// it Young and assigning ownership.
func (rs *Rings) SetCurrent(dom int, p *slotpool.Pool) {
	if p != nil {
		p.SetDomainID(int32(dom))
		p.SetClass(slotpool.Young)
	}
	rs.Current = p
}

// FindAvailable selects a pool to become current: young front if not too
// full, else old front if not too full, else free front, else a freshly
// allocated pool. Returns nil only if allocation of a fresh pool fails.
func (rs *Rings) FindAvailable(dom int) (*slotpool.Pool, error) {
	var p *slotpool.Pool
	if !rs.Young.Empty() && rs.Young.Head.(*slotpool.Pool).NotTooFull() {
		p = popAvailable(&rs.Young)
	}
	if p == nil && !rs.Old.Empty() && rs.Old.Head.(*slotpool.Pool).NotTooFull() {
		p = popAvailable(&rs.Old)
	}
	if p == nil {
		p = popAvailable(&rs.Free)
	}
	if p == nil {
		fresh, err := slotpool.New()
		if err != nil {
			return nil, err
		}
		p = fresh
	}
	rs.SetCurrent(dom, p)
	return p, nil
}

// ringFor returns the ring a class corresponds to.
func (rs *Rings) ringFor(c slotpool.Class) *ring.Ring {
	switch c {
	case slotpool.Old:
		return &rs.Old
	case slotpool.Young:
		return &rs.Young
	default:
		return &rs.Free
	}
}

// Reclassify moves the head of source into dom's ring matching class,
// pushing not-too-full pools to the front of their new ring so repeated
// scans of a ring see full pools last (original reclassify_pool).
func (rs *Rings) Reclassify(source *ring.Ring, dom int, class slotpool.Class) {
	p := popPool(source)
	p.SetDomainID(int32(dom))
	if class == slotpool.Untracked {
		stats.PoolEmptied()
	}
	p.SetClass(class)
	target := rs.ringFor(class)
	target.PushBack(p)
	if p.NotTooFull() {
		target.SetHead(p)
	}
}

// TryDemote is the post-delete check (spec.md §4.1's "threshold
// crossed" case): if p is not the current pool and has become not-too-
// full, move it to the front of its ring, or to FREE if it emptied out.
// p's own Class tells us which real ring (Young or Old) it is physically
// linked into, since SetClass and ring membership always change
// together; rotating that ring's head to p first lets Reclassify's plain
// Pop update the ring correctly even when p is not already at its front.
func (rs *Rings) TryDemote(dom int, p *slotpool.Pool) {
	if p == rs.Current || !p.NotTooFull() {
		return
	}
	class := p.Class()
	if p.AllocCount() == 0 {
		class = slotpool.Untracked
	}
	source := rs.ringFor(p.Class())
	source.SetHead(p)
	rs.Reclassify(source, dom, class)
}

// PromoteYoung moves every pool in the young ring to old: they survived
// at least one minor collection, so now contain only old-generation
// pointers. No data is copied, only reclassified.
func (rs *Rings) PromoteYoung(dom int) {
	for !rs.Young.Empty() {
		rs.Reclassify(&rs.Young, dom, slotpool.Old)
	}
}

// FreePoolRing releases every pool in ring r back to the platform
// allocator (used for the FREE ring at a major collection, and for
// teardown).
func FreePoolRing(r *ring.Ring) {
	for !r.Empty() {
		p := popPool(r)
		p.Release()
	}
}

// FreeAll releases every pool owned by rs.
func (rs *Rings) FreeAll() {
	FreePoolRing(&rs.Old)
	FreePoolRing(&rs.Young)
	if rs.Current != nil {
		rs.Current.Release()
		rs.Current = nil
	}
	FreePoolRing(&rs.Free)
}

// Orphan moves a terminated domain's live pools into the shared
// orphanage, and releases the rest (the free ring), matching
// orphan_pools. The domain's Rings are left empty so a later domain
// reusing the same id starts clean.
func (r *Registry) Orphan(dom int) {
	rs := r.RingsFor(dom)
	r.orphanM.Lock()
	if rs.Current != nil {
		rs.Current.SetClass(slotpool.Young)
		r.orphan.Young.PushBack(rs.Current)
		rs.Current = nil
	}
	r.orphan.Old.PushBack(popAllInto(&rs.Old))
	r.orphan.Young.PushBack(popAllInto(&rs.Young))
	r.orphanM.Unlock()
	FreePoolRing(&rs.Free)
}

// popAllInto detaches src's entire ring as a single ring value (or nil if
// src is empty) so it can be spliced whole onto another ring, instead of
// popping pool-by-pool.
func popAllInto(src *ring.Ring) ring.Elem {
	head := src.Head
	src.Head = nil
	return head
}

// TeardownAll releases every pool owned by every known domain plus
// anything still sitting in the orphanage. Single-threaded by contract
// (spec.md §6: "host runtime has shut down"), so no locking beyond what
// protects the maps themselves.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	domains := make([]*Rings, 0, len(r.byID))
	for _, rs := range r.byID {
		domains = append(domains, rs)
	}
	r.byID = map[int]*Rings{}
	r.mu.Unlock()

	for _, rs := range domains {
		rs.FreeAll()
	}

	r.orphanM.Lock()
	FreePoolRing(&r.orphan.Old)
	FreePoolRing(&r.orphan.Young)
	r.orphanM.Unlock()
}

// AdoptOrphans moves every orphaned pool into dom's matching ring. The
// first domain to reach the next collection after a termination adopts
// them all.
func (r *Registry) AdoptOrphans(dom int) {
	rs := r.RingsFor(dom)
	r.orphanM.Lock()
	defer r.orphanM.Unlock()
	for !r.orphan.Old.Empty() {
		rs.Reclassify(&r.orphan.Old, dom, slotpool.Old)
	}
	for !r.orphan.Young.Empty() {
		rs.Reclassify(&r.orphan.Young, dom, slotpool.Young)
	}
}

package boxroot

import (
	"unsafe"

	"github.com/boxroot-go/boxroot/internal/domain"
	"github.com/boxroot-go/boxroot/internal/slotpool"
	"github.com/boxroot-go/boxroot/internal/stats"
)

// Create registers v as a new root and returns its handle. The caller
// must hold its current domain's lock. Matches spec.md §4.1's branchless
// hot path, falling back to createSlow when the current pool is absent
// or full.
func (r *Registry) Create(v uintptr) (Handle, error) {
	if s := r.Status(); s == StatusInvalid || s == StatusTornDown {
		return Handle{}, ErrNotRunning
	}
	dom := r.host.CurrentDomainID()
	if !r.host.DomainLockHeld(dom) {
		return Handle{}, ErrNoDomainLock
	}
	rs := r.domains.RingsFor(dom)
	if rs.Current != nil {
		if handle, ok := rs.Current.Alloc(v); ok {
			return Handle{addr: handle}, nil
		}
	}
	return r.createSlow(dom, rs, v)
}

// createSlow runs the 6 steps of spec.md §4.2.
func (r *Registry) createSlow(dom int, rs *domain.Rings, v uintptr) (Handle, error) {
	stats.IncCreateSlow()
	if err := r.ensureSetup(); err != nil {
		return Handle{}, err
	}
	if rs.Current != nil {
		cur := rs.Current
		rs.Current = nil
		cur.SetClass(slotpool.Young)
		rs.Young.PushBack(cur)
	}
	domain.TryGCAndReclassifyOneNoSTW(rs, &rs.Young, dom)

	p, err := rs.FindAvailable(dom)
	if err != nil {
		return Handle{}, err
	}
	handle, ok := p.Alloc(v)
	if !ok {
		// A just-selected pool must have room; this can only mean
		// FindAvailable handed back a pool that was already full, which
		// is a programming error in the classifier, not a runtime
		// condition callers should see.
		panic("boxroot: newly selected current pool has no free slots")
	}
	return Handle{addr: handle}, nil
}

// Get loads the value stored at h. The caller must hold the owning
// domain's lock; this is a pure load with no synchronization.
func (r *Registry) Get(h Handle) uintptr {
	return *r.cell(h)
}

// GetRef returns a pointer to h's cell, stable until the next Delete or
// a reallocating Modify of h.
func (r *Registry) GetRef(h Handle) *uintptr {
	return r.cell(h)
}

func (r *Registry) cell(h Handle) *uintptr {
	return (*uintptr)(unsafe.Pointer(h.addr))
}

// Delete consumes ownership of h. The caller must not use h again. No
// domain lock is required: ownership, not locking, gates this call —
// matching spec.md §4.1's "handle ownership transferred in".
func (r *Registry) Delete(h Handle) {
	if !h.Valid() {
		return
	}
	p := slotpool.FromSlot(h.addr)
	if p == nil {
		return
	}
	dom := r.host.CurrentDomainID()
	local := !r.forceRemote && int(p.DomainID()) == dom && r.host.DomainLockHeld(dom)
	if !local {
		r.deleteSlow(p, h.addr)
		return
	}
	if p.LocalFree(h.addr) {
		r.deleteSlow(p, 0) // threshold crossed: ask the slow path to maybe demote
	}
}

// deleteSlow handles both of spec.md §4.1's non-trivial delete cases:
// addr == 0 signals "threshold crossed, local free already applied, just
// reclassify"; a non-zero addr signals a genuine remote delete that
// still needs the atomic push.
func (r *Registry) deleteSlow(p *slotpool.Pool, addr uintptr) {
	stats.IncDeleteSlow()
	if addr == 0 {
		dom := int(p.DomainID())
		rs := r.domains.RingsFor(dom)
		rs.TryDemote(dom, p)
		return
	}
	// A caller with no domain lock at all (e.g. a finalizer) must take
	// the pool mutex around the push; a caller holding some other
	// domain's lock does not, since the mutex only protects lockless
	// pushers racing with drainers.
	dom := r.host.CurrentDomainID()
	if !r.host.DomainLockHeld(dom) {
		p.Lock()
		p.RemoteFree(addr)
		p.Unlock()
		return
	}
	p.RemoteFree(addr)
}

// Modify overwrites h's value with v, reallocating the handle when
// necessary to preserve the class invariant (an OLD-classed pool never
// holds a young pointer). Per the stricter multi-domain rule adopted
// here, only an old→young transition reallocates; young-classed pools
// always accept a new value in place. Requires the owning domain's lock
// the same as the original boxroot_modify (boxroot.h), matching spec.md
// §7's EPERM-on-missing-lock contract. Returns false when reallocation
// was required and failed; v is then still stored in place, and the
// error is nil if the host enrolled the cell in its remembered set, or
// the allocation error if it could not (the registry then becomes
// StatusInvalid). Once the registry is invalid or torn down, Modify
// returns false with ErrNotRunning.
func (r *Registry) Modify(h *Handle, v uintptr) (bool, error) {
	if s := r.Status(); s == StatusInvalid || s == StatusTornDown {
		return false, ErrNotRunning
	}
	if !h.Valid() {
		return false, ErrNoDomainLock
	}
	p := slotpool.FromSlot(h.addr)
	if p == nil {
		return false, ErrNoDomainLock
	}
	if !r.host.DomainLockHeld(int(p.DomainID())) {
		return false, ErrNoDomainLock
	}
	if p.Class() == slotpool.Young || !r.host.IsYoung(v) {
		*r.cell(*h) = v
		return true, nil
	}
	return r.modifySlow(h, v)
}

// modifySlow reallocates h by create-then-delete when an old-classed
// pool is about to receive a young value. Modify has already confirmed
// the owning domain's lock is held. On allocation failure it falls back
// to overwriting in place and enrolling the cell in the host's
// remembered-set equivalent.
func (r *Registry) modifySlow(h *Handle, v uintptr) (bool, error) {
	stats.IncModifySlow()
	newHandle, err := r.Create(v)
	if err != nil {
		cell := r.cell(*h)
		*cell = v
		if !r.host.EnrollRemembered(cell) {
			r.setInvalid()
			return false, err
		}
		return false, nil
	}
	r.Delete(*h)
	*h = newHandle
	return true, nil
}

func (r *Registry) setInvalid() {
	r.setupMu.Lock()
	r.status = StatusInvalid
	r.setupMu.Unlock()
}

// Package gchost installs boxroot's callbacks into the host's GC hooks
// and tracks whether a minor collection is currently in flight, chaining
// to whatever hook was previously installed rather than replacing it.
//
// Grounded directly on original_source/boxroot/ocaml_hooks.c, which
// exists purely to do this chaining (it is the one file in the original
// with no Go-side equivalent in the teacher, since the teacher is a
// runtime implementation, not a library that hooks into one).
package gchost

import "sync/atomic"

// ScanRoots is the shape of the host's scan-roots hook: it is called
// once per domain at the start of a minor or major collection, with
// onlyYoung set for minor collections.
type ScanRoots func(onlyYoung bool, domainID int)

// TimingHook is the shape of the host's minor-begin/minor-end hooks: no
// arguments, no return value.
type TimingHook func()

// DomainHook is the shape of the host's domain-terminated hook: it
// carries the id of the domain that just terminated.
type DomainHook func(domainID int)

// Hooks chains boxroot's callbacks onto whatever hooks a host (or an
// earlier library) already installed, and maintains the
// "is a minor collection in flight" counter the way
// ocaml_hooks.c's in_minor_collection does.
type Hooks struct {
	inMinorCollection int32 // atomic; counts domains currently in minor GC

	prevScanRoots        ScanRoots
	prevMinorBegin       TimingHook
	prevMinorEnd         TimingHook
	prevDomainTerminated DomainHook

	scanRoots        ScanRoots
	domainTerminated DomainHook
}

// Install records the callbacks boxroot wants called, chaining after
// any hooks already present on prev. It returns the combined hooks the
// host should install in their place.
func Install(prev Hooks, scanRoots ScanRoots, domainTerminated DomainHook) *Hooks {
	h := &Hooks{
		prevScanRoots:        prev.scanRoots,
		prevMinorBegin:       prev.prevMinorBegin,
		prevMinorEnd:         prev.prevMinorEnd,
		prevDomainTerminated: prev.domainTerminated,
		scanRoots:            scanRoots,
		domainTerminated:     domainTerminated,
	}
	return h
}

// ScanRootsHook is what the host should call on every domain at the
// start of a collection.
func (h *Hooks) ScanRootsHook(onlyYoung bool, domainID int) {
	if h.prevScanRoots != nil {
		h.prevScanRoots(onlyYoung, domainID)
	}
	h.scanRoots(onlyYoung, domainID)
}

// MinorBeginHook should be wired to the host's minor-collection-begin
// timing hook.
func (h *Hooks) MinorBeginHook() {
	atomic.AddInt32(&h.inMinorCollection, 1)
	if h.prevMinorBegin != nil {
		h.prevMinorBegin()
	}
}

// MinorEndHook should be wired to the host's minor-collection-end timing
// hook.
func (h *Hooks) MinorEndHook() {
	atomic.AddInt32(&h.inMinorCollection, -1)
	if h.prevMinorEnd != nil {
		h.prevMinorEnd()
	}
}

// DomainTerminatedHook should be wired to the host's domain-termination
// hook.
func (h *Hooks) DomainTerminatedHook(domainID int) {
	if h.prevDomainTerminated != nil {
		h.prevDomainTerminated(domainID)
	}
	h.domainTerminated(domainID)
}

// InMinorCollection reports whether any domain is currently inside a
// minor collection. Correctness relies on minor collections being
// stop-the-world and on these hooks running under a domain lock, exactly
// as documented in ocaml_hooks.c.
func (h *Hooks) InMinorCollection() bool {
	return atomic.LoadInt32(&h.inMinorCollection) != 0
}

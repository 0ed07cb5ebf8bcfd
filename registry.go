// Package boxroot is a registry of GC roots for a host runtime with a
// moving, generational collector. A root is an external one-word cell
// the host GC must treat as live and may rewrite in place when the
// block it references moves; client code holds it as an opaque Handle,
// valid across collections until explicitly deleted.
//
// The hard part — and what this package actually implements — is the
// pool allocator backing those handles: fixed-size pools classified by
// generation, a local free list plus a lock-free delayed list for
// deallocations that arrive from a domain other than the owner, and the
// scanning/promotion protocol a host GC drives under stop-the-world.
//
// Grounded on the teacher's sync/pool.go for the overall
// "fast path backed by a slow path that restocks it" shape, generalized
// from per-P caches to per-domain pool rings.
package boxroot

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/boxroot-go/boxroot/internal/domain"
	"github.com/boxroot-go/boxroot/internal/gchost"
	"github.com/boxroot-go/boxroot/internal/slotpool"
	"github.com/boxroot-go/boxroot/internal/stats"
)

// Registry owns one host's entire set of domains, pools, and GC hooks.
// There is normally exactly one Registry per process, matching the
// original library's single set of global tables.
type Registry struct {
	setupMu sync.Mutex
	status  Status

	host   Host
	domains *domain.Registry
	hooks  *gchost.Hooks
	log    *zap.SugaredLogger

	// forceRemote routes every delete through the remote slow path
	// regardless of domain ownership; set only by the test helper in
	// force_remote_debug.go (build tag boxroot_debug), never at runtime.
	forceRemote bool
}

// New constructs a Registry in StatusNotSetup. Call Setup before using
// it for anything but Status.
func New(host Host, log *zap.SugaredLogger) *Registry {
	if log == nil {
		l, _ := zap.NewProduction()
		log = l.Sugar()
	}
	return &Registry{
		status:  StatusNotSetup,
		host:    host,
		domains: domain.NewRegistry(),
		log:     log,
	}
}

// Setup installs the registry's callbacks into the host's GC hooks.
// Idempotent after the first successful call; matches spec.md §4.2 step
// 1's "first-call setup installs host hooks under a one-shot mutex".
func (r *Registry) Setup() error {
	r.setupMu.Lock()
	defer r.setupMu.Unlock()
	if r.status == StatusRunning {
		return nil
	}
	if r.status == StatusTornDown || r.status == StatusInvalid {
		return fmt.Errorf("boxroot: setup after %s: %w", r.status, ErrNotRunning)
	}
	r.hooks = gchost.Install(gchost.Hooks{}, r.scanRoots, r.domainTerminated)
	r.status = StatusRunning
	r.log.Debugw("boxroot registry set up")
	return nil
}

// Status reports the registry's current lifecycle state.
func (r *Registry) Status() Status {
	r.setupMu.Lock()
	defer r.setupMu.Unlock()
	return r.status
}

// Stats returns a snapshot of the side-channel counters every in-scope
// operation updates. Never wired to an external metrics system; see
// cmd/boxrootctl for the one consumer that prints it.
func (r *Registry) Stats() stats.Counters {
	return stats.Snapshot()
}

// Teardown reclaims every pool across every domain. Idempotent: a
// second call is a safe no-op, per spec.md §8 property 7.
func (r *Registry) Teardown() {
	r.setupMu.Lock()
	defer r.setupMu.Unlock()
	if r.status == StatusTornDown {
		return
	}
	r.domains.TeardownAll()
	r.status = StatusTornDown
	r.log.Debugw("boxroot registry torn down")
}

// ensureSetup runs Setup if the registry has never been set up; mirrors
// the original's lazy one-shot initialization on the first create.
func (r *Registry) ensureSetup() error {
	if r.Status() == StatusRunning {
		return nil
	}
	return r.Setup()
}

// scanRoots is installed as the host's scan-roots hook. It runs the
// pre-scan steps (current→young, drain delayed lists, adopt orphans),
// dispatches to the young-only or general scanner over every pool in
// scope, then runs the post-scan steps (promote-on-minor,
// free-on-major). Matches spec.md §4.4 in full.
func (r *Registry) scanRoots(onlyYoung bool, dom int) {
	rs := r.domains.RingsFor(dom)
	if rs.Current != nil {
		cur := rs.Current
		rs.Current = nil
		cur.SetClass(slotpool.Young)
		rs.Young.PushBack(cur)
	}
	r.domains.GCPoolRings(dom)
	r.domains.AdoptOrphans(dom)

	if onlyYoung {
		stats.AddScanningWorkMinor(r.scanRingYoung(&rs.Young))
		stats.IncMinorCollections()
	} else {
		stats.AddScanningWorkMajor(r.scanRingGen(&rs.Young))
		stats.AddScanningWorkMajor(r.scanRingGen(&rs.Old))
		stats.IncMajorCollections()
	}

	if onlyYoung {
		rs.PromoteYoung(dom)
	} else {
		domain.FreePoolRing(&rs.Free)
	}
}

// domainTerminated is installed as the host's domain-terminated hook.
func (r *Registry) domainTerminated(dom int) {
	r.domains.Orphan(dom)
}

// ScanRoots is what the host should call to drive a collection; it runs
// scanRoots through the hook chain built by Setup, which installs no
// earlier hook to chain to.
func (r *Registry) ScanRoots(onlyYoung bool, dom int) { r.hooks.ScanRootsHook(onlyYoung, dom) }

// MinorBegin/MinorEnd should be wired to the host's minor-collection
// timing hooks so InMinorCollection reflects reality.
func (r *Registry) MinorBegin() { r.hooks.MinorBeginHook() }
func (r *Registry) MinorEnd()   { r.hooks.MinorEndHook() }

// DomainTerminated is what the host should call when dom shuts down.
func (r *Registry) DomainTerminated(dom int) { r.hooks.DomainTerminatedHook(dom) }

// InMinorCollection reports whether any domain is currently inside a
// minor collection, per spec.md §6's "are we in minor collection?"
// predicate.
func (r *Registry) InMinorCollection() bool { return r.hooks.InMinorCollection() }

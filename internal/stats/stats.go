// Package stats holds the running counters the original boxroot.c
// maintains in its file-scope `stats` struct. Spec.md keeps "statistics
// reporting and CLI glue" out of scope as an external collaborator, but
// the counters themselves are a side effect of operations that are very
// much in scope (ring pushes, scans, slow paths): this package is the
// side channel every in-scope operation already touches, read-only from
// the outside.
package stats

import "sync/atomic"

// Counters mirrors the fields of boxroot.c's `stats` struct that are
// produced by code this repository implements (scanning work, ring
// operations, pool lifecycle, slow-path hits). MinorCollections and
// MajorCollections count scans and are stamped by the boxroot package's
// scan hook; the original's timing fields have no counterpart here.
type Counters struct {
	MinorCollections int64
	MajorCollections int64

	TotalCreateSlow int64
	TotalDeleteSlow int64
	TotalModifySlow int64

	TotalGCPoolRings int64

	TotalScanningWorkMinor int64
	TotalScanningWorkMajor int64

	TotalAllocedPools int64
	TotalEmptiedPools int64
	TotalFreedPools   int64
	LivePools         int64
	PeakPools         int64

	RingOperations int64
}

var global Counters

// IncRingOperations records a single pool ring link mutation. Called from
// package ring so every PushBack/Pop is counted regardless of caller.
func IncRingOperations() { atomic.AddInt64(&global.RingOperations, 1) }

func IncCreateSlow()  { atomic.AddInt64(&global.TotalCreateSlow, 1) }
func IncDeleteSlow()  { atomic.AddInt64(&global.TotalDeleteSlow, 1) }
func IncModifySlow()  { atomic.AddInt64(&global.TotalModifySlow, 1) }
func IncGCPoolRings() { atomic.AddInt64(&global.TotalGCPoolRings, 1) }

func AddScanningWorkMinor(n int64) { atomic.AddInt64(&global.TotalScanningWorkMinor, n) }
func AddScanningWorkMajor(n int64) { atomic.AddInt64(&global.TotalScanningWorkMajor, n) }

func IncMinorCollections() { atomic.AddInt64(&global.MinorCollections, 1) }
func IncMajorCollections() { atomic.AddInt64(&global.MajorCollections, 1) }

// PoolAllocated/PoolEmptied/PoolFreed track the pool lifecycle
// (allocated -> emptied into UNTRACKED -> freed at a major collection),
// keeping LivePools/PeakPools consistent the way get_empty_pool and
// reclassify_pool do in the original.
func PoolAllocated() {
	atomic.AddInt64(&global.TotalAllocedPools, 1)
	live := atomic.AddInt64(&global.LivePools, 1)
	for {
		peak := atomic.LoadInt64(&global.PeakPools)
		if live <= peak || atomic.CompareAndSwapInt64(&global.PeakPools, peak, live) {
			break
		}
	}
}

func PoolEmptied() {
	atomic.AddInt64(&global.TotalEmptiedPools, 1)
	atomic.AddInt64(&global.LivePools, -1)
}

func PoolFreed() { atomic.AddInt64(&global.TotalFreedPools, 1) }

// Snapshot returns a copy of the global counters for reporting.
func Snapshot() Counters {
	return Counters{
		MinorCollections:       atomic.LoadInt64(&global.MinorCollections),
		MajorCollections:       atomic.LoadInt64(&global.MajorCollections),
		TotalCreateSlow:        atomic.LoadInt64(&global.TotalCreateSlow),
		TotalDeleteSlow:        atomic.LoadInt64(&global.TotalDeleteSlow),
		TotalModifySlow:        atomic.LoadInt64(&global.TotalModifySlow),
		TotalGCPoolRings:       atomic.LoadInt64(&global.TotalGCPoolRings),
		TotalScanningWorkMinor: atomic.LoadInt64(&global.TotalScanningWorkMinor),
		TotalScanningWorkMajor: atomic.LoadInt64(&global.TotalScanningWorkMajor),
		TotalAllocedPools:      atomic.LoadInt64(&global.TotalAllocedPools),
		TotalEmptiedPools:      atomic.LoadInt64(&global.TotalEmptiedPools),
		TotalFreedPools:        atomic.LoadInt64(&global.TotalFreedPools),
		LivePools:              atomic.LoadInt64(&global.LivePools),
		PeakPools:              atomic.LoadInt64(&global.PeakPools),
		RingOperations:         atomic.LoadInt64(&global.RingOperations),
	}
}

// Reset is test-only: it lets each package test start from a clean
// counter set instead of accumulating across the whole test binary.
func Reset() { global = Counters{} }

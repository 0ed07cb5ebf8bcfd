package boxroot

import (
	"github.com/boxroot-go/boxroot/internal/ring"
	"github.com/boxroot-go/boxroot/internal/slotpool"
)

// scanRingYoung runs the specialized minor-collection scan (spec.md
// §4.4's only_young=true mode) over every pool in rg and returns the
// total slots visited.
func (r *Registry) scanRingYoung(rg *ring.Ring) int64 {
	var work int64
	start, length := r.host.YoungRange()
	rg.Each(func(e ring.Elem) {
		p := e.(*slotpool.Pool)
		work += int64(p.ScanYoung(start, length, r.host.IsBlock, r.host.ScanAction))
	})
	return work
}

// scanRingGen runs the count-driven general scan (spec.md §4.4's
// only_young=false mode) over every pool in rg.
func (r *Registry) scanRingGen(rg *ring.Ring) int64 {
	var work int64
	rg.Each(func(e ring.Elem) {
		p := e.(*slotpool.Pool)
		work += int64(p.ScanGen(r.host.ScanAction))
	})
	return work
}

package domain

import (
	"testing"

	"github.com/boxroot-go/boxroot/internal/ring"
	"github.com/boxroot-go/boxroot/internal/slotpool"
)

func TestGCPoolRingsDrainsAndReclassifies(t *testing.T) {
	r := NewRegistry()
	rs := r.RingsFor(1)
	p := newPool(t)
	p.SetClass(slotpool.Young)
	p.SetDomainID(1)
	rs.Young.PushBack(p)

	handles := make([]uintptr, 0, 8)
	for i := 0; i < 8; i++ {
		h, ok := p.Alloc(uintptr(i))
		if !ok {
			t.Fatal("alloc failed")
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		p.RemoteFree(h)
	}

	r.GCPoolRings(1)

	if p.AllocCount() != 0 {
		t.Fatalf("alloc count after GCPoolRings = %d, want 0", p.AllocCount())
	}
	if rs.Free.Empty() {
		t.Fatal("fully drained pool should reclassify to Free")
	}
	if !rs.Young.Empty() {
		t.Fatal("young ring should be empty once its only pool reclassified to Free")
	}
}

// TestGCPoolRingsMultiplePoolsKeepsRingIntact reproduces the three-pool
// case: only the ring's head pool reclassifies, and the other two must
// remain reachable from rs.Young afterward instead of being orphaned by
// a stale Head pointer.
func TestGCPoolRingsMultiplePoolsKeepsRingIntact(t *testing.T) {
	r := NewRegistry()
	rs := r.RingsFor(1)

	head := newPool(t)
	head.SetClass(slotpool.Young)
	head.SetDomainID(1)
	rs.Young.PushBack(head)
	hh, ok := head.Alloc(1)
	if !ok {
		t.Fatal("alloc failed")
	}
	head.RemoteFree(hh) // drains to empty: reclassifies out of Young

	var survivors []*slotpool.Pool
	for i := 0; i < 2; i++ {
		p := newPool(t)
		p.SetClass(slotpool.Young)
		p.SetDomainID(1)
		if _, ok := p.Alloc(uintptr(i)); !ok {
			t.Fatal("alloc failed")
		}
		rs.Young.PushBack(p)
		survivors = append(survivors, p)
	}

	r.GCPoolRings(1)

	count := 0
	rs.Young.Each(func(ring.Elem) { count++ })
	if count != len(survivors) {
		t.Fatalf("young ring has %d members after GC, want %d: a stale Head left pools unreachable", count, len(survivors))
	}
}

func TestTryGCAndReclassifyOneNoSTWIsAmortized(t *testing.T) {
	rs := &Rings{}
	var pools []*slotpool.Pool
	for i := 0; i < 3; i++ {
		p := newPool(t)
		p.SetClass(slotpool.Young)
		p.SetDomainID(2)
		h, ok := p.Alloc(1)
		if !ok {
			t.Fatal("alloc failed")
		}
		p.RemoteFree(h)
		rs.Young.PushBack(p)
		pools = append(pools, p)
	}

	TryGCAndReclassifyOneNoSTW(rs, &rs.Young, 2)

	emptied := 0
	for _, p := range pools {
		if p.Class() == slotpool.Untracked {
			emptied++
		}
	}
	if emptied > 1 {
		t.Fatalf("one no-STW pass reclassified %d pools, want at most 1", emptied)
	}
}

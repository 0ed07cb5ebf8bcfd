package domain

import (
	"testing"

	"github.com/boxroot-go/boxroot/internal/ring"
	"github.com/boxroot-go/boxroot/internal/slotpool"
)

func newPool(t *testing.T) *slotpool.Pool {
	t.Helper()
	p, err := slotpool.New()
	if err != nil {
		t.Fatalf("slotpool.New: %v", err)
	}
	t.Cleanup(func() { p.Release() })
	return p
}

func TestFindAvailableAllocatesFreshWhenAllRingsEmpty(t *testing.T) {
	rs := &Rings{}
	p, err := rs.FindAvailable(0)
	if err != nil {
		t.Fatalf("FindAvailable: %v", err)
	}
	t.Cleanup(func() { p.Release() })
	if rs.Current != p {
		t.Fatal("FindAvailable must install the pool as Current")
	}
	if p.Class() != slotpool.Young {
		t.Fatalf("fresh current pool class = %v, want Young", p.Class())
	}
}

func TestFindAvailablePrefersYoungFront(t *testing.T) {
	rs := &Rings{}
	young := newPool(t)
	young.SetClass(slotpool.Young)
	rs.Young.PushBack(young)

	got, err := rs.FindAvailable(1)
	if err != nil {
		t.Fatalf("FindAvailable: %v", err)
	}
	if got != young {
		t.Fatal("expected the young-ring pool to be selected")
	}
}

func TestReclassifyUntrackedMovesToFree(t *testing.T) {
	rs := &Rings{}
	p := newPool(t)
	p.SetClass(slotpool.Young)
	p.SetDomainID(3)
	rs.Young.PushBack(p)

	rs.Reclassify(&rs.Young, 3, slotpool.Untracked)
	if rs.Free.Empty() {
		t.Fatal("pool should have moved to the free ring")
	}
	if p.Class() != slotpool.Untracked {
		t.Fatalf("class = %v, want Untracked", p.Class())
	}
}

func TestPromoteYoungMovesEveryPoolToOld(t *testing.T) {
	rs := &Rings{}
	for i := 0; i < 3; i++ {
		p := newPool(t)
		p.SetClass(slotpool.Young)
		rs.Young.PushBack(p)
	}
	rs.PromoteYoung(7)
	if !rs.Young.Empty() {
		t.Fatal("young ring should be empty after promotion")
	}
	count := 0
	rs.Old.Each(func(e ring.Elem) {
		count++
		if e.(*slotpool.Pool).Class() != slotpool.Old {
			t.Fatal("promoted pool must be classed Old")
		}
	})
	if count != 3 {
		t.Fatalf("old ring has %d pools, want 3", count)
	}
}

func TestOrphanAndAdopt(t *testing.T) {
	r := NewRegistry()
	rs := r.RingsFor(5)
	p := newPool(t)
	p.SetClass(slotpool.Young)
	rs.SetCurrent(5, p)

	r.Orphan(5)
	if rs.Current != nil {
		t.Fatal("orphaned domain's Current must be cleared")
	}

	r.AdoptOrphans(9)
	adopted := r.RingsFor(9)
	found := false
	adopted.Young.Each(func(e ring.Elem) {
		if e.(*slotpool.Pool) == p {
			found = true
		}
	})
	if !found {
		t.Fatal("adopting domain should receive the orphaned pool")
	}
}
